package drawmodel

// A ModelBuildError indicates that a Controller could not
// be constructed.
type ModelBuildError struct {
	Err error
}

func (m *ModelBuildError) Error() string {
	return "build model: " + m.Err.Error()
}

func (m *ModelBuildError) Unwrap() error {
	return m.Err
}

// A TrainingError indicates that Train failed.
//
// Parameter updates made before the failure are kept.
type TrainingError struct {
	Err error
}

func (t *TrainingError) Error() string {
	return "train model: " + t.Err.Error()
}

func (t *TrainingError) Unwrap() error {
	return t.Err
}

// An InferenceError indicates that Predict or Evaluate
// failed.
type InferenceError struct {
	Err error
}

func (i *InferenceError) Error() string {
	return "inference: " + i.Err.Error()
}

func (i *InferenceError) Unwrap() error {
	return i.Err
}

package pose

import "io"

// composite joins an estimator from one source with a classifier from another.
type composite struct {
	Estimator
	Classifier
	name   string
	closer io.Closer
}

// Compose builds a Model from a separate estimator and classifier. closer may be
// nil.
func Compose(name string, e Estimator, c Classifier, closer io.Closer) Model {
	return &composite{Estimator: e, Classifier: c, name: name, closer: closer}
}

func (m *composite) Name() string { return m.name }

func (m *composite) Close() error {
	if m.closer == nil {
		return nil
	}
	return m.closer.Close()
}

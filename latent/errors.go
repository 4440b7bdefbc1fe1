package latent

import "fmt"

// DegenerateModelWarning records a model that was built with fewer
// components than requested. It is reported, never returned as an error.
type DegenerateModelWarning struct {
	Level     int
	Crystal   int
	Members   int
	Requested int
	K         int
	Reason    string
}

func (w DegenerateModelWarning) String() string {
	return fmt.Sprintf("latent: persistence %d crystal %d (%d members): k=%d (requested %d): %s",
		w.Level, w.Crystal, w.Members, w.K, w.Requested, w.Reason)
}

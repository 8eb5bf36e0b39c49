package escape

// Decision is the MUST-VALIDATE/SKIP outcome for one candidate site,
// together with the textual reason every skip must carry so Analyze can
// surface it.
type Decision struct {
	Validate bool
	Reason   string // only meaningful when !Validate
}

func validate() Decision { return Decision{Validate: true} }

func skip(reason string) Decision { return Decision{Validate: false, Reason: reason} }

package hyqcore

// AquiferParams holds the uniform hydraulic properties of the single aquifer.
type AquiferParams struct {
	H0       float64 // initial head [m]
	T        float64 // transmissivity [m²/s]
	S        float64 // storativity [-]
	M        float64 // thickness [m]
	Confined bool
}

func NewAquiferParams(h0, t, s, m float64, confined bool) (AquiferParams, error) {
	if !finite(h0) {
		return AquiferParams{}, &ParameterError{Name: "H0", Value: h0, Reason: "must be finite"}
	}
	if !confined && h0 <= 0 {
		return AquiferParams{}, &ParameterError{Name: "H0", Value: h0, Reason: "must be positive for an unconfined aquifer"}
	}
	if !finite(t) || t <= 0 {
		return AquiferParams{}, &ParameterError{Name: "T", Value: t, Reason: "must be positive"}
	}
	if !finite(s) || s <= 0 {
		return AquiferParams{}, &ParameterError{Name: "S", Value: s, Reason: "must be positive"}
	}
	if !finite(m) || m < 0 {
		return AquiferParams{}, &ParameterError{Name: "M", Value: m, Reason: "must not be negative"}
	}
	return AquiferParams{H0: h0, T: t, S: s, M: m, Confined: confined}, nil
}

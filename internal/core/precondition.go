package core

// CheckDrawPreconditions evaluates the draw gates against a set of profiles:
// no profile may carry a target yet, and every human on the roster must have a
// ready profile. Pets never submit and are excluded from the readiness gate.
func CheckDrawPreconditions(roster Roster, profiles []Profile) error {
	byID := make(map[string]Profile, len(profiles))
	for _, p := range profiles {
		if p.HasTarget() {
			return PreconditionFailedError{Reason: ReasonAlreadyDrawn}
		}
		byID[p.ID] = p
	}
	var pending []string
	for _, h := range roster.Humans() {
		if p, ok := byID[h.ID]; !ok || !p.IsReady() {
			pending = append(pending, h.ID)
		}
	}
	if len(pending) > 0 {
		return PreconditionFailedError{Reason: ReasonNotAllReady, Pending: pending}
	}
	return nil
}

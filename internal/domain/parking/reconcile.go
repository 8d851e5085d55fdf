package parking

// Reconcile lists the observations of a day that no registration accounts for.
//
// An observation is reported when its plate has no session that day, or when
// a session for the same plate and street has it after the de-registration and
// before the registration. The second test is kept literally: it only fires for
// sessions whose de-registration precedes their registration. Observations for
// plates without any session come first, in input order.
func Reconcile(sessions []Session, observations []Observation) []ReportEntry {
	plates := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		plates[s.LicencePlate] = struct{}{}
	}

	entries := make([]ReportEntry, 0)
	for _, o := range observations {
		if _, ok := plates[o.LicencePlate]; !ok {
			entries = append(entries, toReportEntry(o))
		}
	}

	for _, o := range observations {
		for _, s := range sessions {
			if outsideRegistration(o, s) {
				entries = append(entries, toReportEntry(o))
				break
			}
		}
	}

	return entries
}

func outsideRegistration(o Observation, s Session) bool {
	if o.LicencePlate != s.LicencePlate || o.StreetName != s.StreetName {
		return false
	}
	if s.DeregisteredAt == nil {
		return false
	}
	return o.ObservedAt.After(*s.DeregisteredAt) && o.ObservedAt.Before(s.RegisteredAt)
}

func toReportEntry(o Observation) ReportEntry {
	return ReportEntry{
		LicencePlate: o.LicencePlate,
		StreetName:   o.StreetName,
		ObservedAt:   o.ObservedAt,
	}
}

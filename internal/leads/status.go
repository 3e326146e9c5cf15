package leads

import "github.com/fortuna/kitscout/internal/store"

// forward lists the automatic moves the pipeline makes. Unsubscribing is
// allowed from every status and handled separately.
var forward = map[store.LeadStatus][]store.LeadStatus{
	store.StatusNew:       {store.StatusValidated, store.StatusEnriched, store.StatusSegmented},
	store.StatusValidated: {store.StatusEnriched, store.StatusSegmented, store.StatusContacted},
	store.StatusEnriched:  {store.StatusSegmented, store.StatusContacted},
	store.StatusSegmented: {store.StatusContacted},
	store.StatusContacted: {store.StatusResponded},
	store.StatusResponded: {store.StatusConverted},
}

// Contactable are the statuses from which a lead may be marked contacted.
var Contactable = []store.LeadStatus{store.StatusValidated, store.StatusEnriched, store.StatusSegmented}

// Segmentable are the statuses the classifier picks up.
var Segmentable = []store.LeadStatus{store.StatusNew, store.StatusValidated}

// CanTransition reports whether the pipeline may move a lead from one status
// to another.
func CanTransition(from, to store.LeadStatus) bool {
	if from == store.StatusUnsubscribed {
		return false
	}
	if to == store.StatusUnsubscribed {
		return true
	}
	for _, next := range forward[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CanContact reports whether a lead in status may be marked contacted.
func CanContact(status store.LeadStatus) bool {
	return contains(Contactable, status)
}

func contains(list []store.LeadStatus, s store.LeadStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

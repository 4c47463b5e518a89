package followings

// relatedTypenames are the GraphQL types whose mutation makes the cached
// followings list stale. Refresh is a dummy type the toolbar uses to force
// a reload.
var relatedTypenames = []string{
	"User",
	"ManualPlace",
	"ManualPerson",
	"Refresh",
	"UserPinResponse",
}

// ShouldInvalidate reports whether any of the changed typenames touches the
// followings query. Duplicates in changedTypenames do not count as a match.
func ShouldInvalidate(changedTypenames []string) bool {
	for _, changed := range changedTypenames {
		for _, related := range relatedTypenames {
			if changed == related {
				return true
			}
		}
	}
	return false
}

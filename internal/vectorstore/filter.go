package vectorstore

import "errors"

// isolationFilterKeys are keys that cannot appear in caller filters.
var isolationFilterKeys = []string{"user_id"}

// ErrUserFilterReserved indicates a caller tried to set isolation fields.
var ErrUserFilterReserved = errors.New("caller filters cannot contain user_id")

// ApplyUserFilter merges caller filters with the isolation filter, enforcing
// that the isolation layer always wins.
//
// Returns ErrUserFilterReserved if callerFilters contains user_id; the
// owning user comes from context, never from request payloads.
func ApplyUserFilter(callerFilters, userFilter map[string]interface{}) (map[string]interface{}, error) {
	if callerFilters == nil && userFilter == nil {
		return nil, nil
	}
	if callerFilters == nil {
		return userFilter, nil
	}

	for _, key := range isolationFilterKeys {
		if _, exists := callerFilters[key]; exists {
			return nil, ErrUserFilterReserved
		}
	}

	if userFilter == nil {
		result := make(map[string]interface{}, len(callerFilters))
		for k, v := range callerFilters {
			result[k] = v
		}
		return result, nil
	}

	result := make(map[string]interface{}, len(callerFilters)+len(userFilter))
	for k, v := range callerFilters {
		result[k] = v
	}
	for k, v := range userFilter {
		result[k] = v
	}
	return result, nil
}

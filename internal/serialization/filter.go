package serialization

import "regexp"

// Filter decides whether a tensor name joins the reader's active key
// set. It is evaluated exactly once per index entry at construction
// time; filtered-out entries cost no memory and no data I/O. A non-nil
// error aborts construction, wrapped in ErrFilterCallback.
type Filter func(name string) (bool, error)

// MatchPrefix accepts names beginning with prefix.
func MatchPrefix(prefix string) Filter {
	return func(name string) (bool, error) {
		return len(name) >= len(prefix) && name[:len(prefix)] == prefix, nil
	}
}

// MatchRegexp accepts names matching the pattern.
func MatchRegexp(re *regexp.Regexp) Filter {
	return func(name string) (bool, error) {
		return re.MatchString(name), nil
	}
}

// MatchAny accepts names accepted by at least one of the given filters.
func MatchAny(filters ...Filter) Filter {
	return func(name string) (bool, error) {
		for _, f := range filters {
			ok, err := f(name)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

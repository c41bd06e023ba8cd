package library

// PatronIDLength is the fixed width of a library card number.
const PatronIDLength = 6

// ValidPatronID reports whether id is exactly six ASCII digits. Leading zeros are significant.
func ValidPatronID(id string) bool {
	if len(id) != PatronIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

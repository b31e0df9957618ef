package password

// commonPasswords are rejected outright after lowercasing. This is the
// short list kept in-process; the breach corpus covers the long tail.
var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range []string{
		"password", "password1", "password123", "passw0rd", "p@ssword",
		"123456", "1234567", "12345678", "123456789", "1234567890",
		"qwerty", "qwerty123", "qwertyuiop", "abc123", "abcd1234",
		"letmein", "welcome", "welcome1", "admin", "administrator",
		"iloveyou", "monkey", "dragon", "sunshine", "princess",
		"football", "baseball", "superman", "batman", "master",
		"shadow", "trustno1", "login", "starwars", "whatever",
		"654321", "666666", "696969", "111111", "000000",
		"1q2w3e4r", "zaq12wsx", "qazwsx", "changeme", "secret",
	} {
		commonPasswords[p] = struct{}{}
	}
}

// dictionaryWords trigger a warning (not an error) when found as substrings.
var dictionaryWords = []string{
	"apple", "house", "computer", "internet", "summer", "winter",
	"spring", "autumn", "coffee", "orange", "purple", "yellow",
	"silver", "golden", "happy", "money", "music", "tiger",
	"eagle", "river", "mountain", "ocean", "flower", "garden",
}

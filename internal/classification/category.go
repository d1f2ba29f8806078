// Package classification decides which aggregated import hashes belong on the
// permanent ignore list.
package classification

// Category names the rule that put a key on the ignore list. It is stored as the
// ignore entry's category and notes.
type Category string

const (
	NoDecision Category = ""

	CategoryVirus     Category = "virus"
	CategoryWorm      Category = "worm"
	CategorySafe      Category = "safe"
	CategoryOld       Category = "old"
	CategoryInstaller Category = "installer"
	CategoryCount     Category = "count"
	CategorySignfix   Category = "signfix"
)

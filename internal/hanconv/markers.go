package hanconv

// defaultMarkers are high-frequency Simplified characters that do not occur in
// standard Traditional text. Forms such as 准, 党 and 万 that Traditional text
// also uses are left out.
var defaultMarkers = []rune(
	"国发会说来对开关门问间时实现学业产经济军众团织组级别类样规则统结设计" +
		"项标议论显讲话语词汇码数额费应该须给献这们为过还没让进动书长东车见两边")

// ParseMarkers turns a list of strings into a marker rune set, ignoring
// empty entries. Each string may contain several characters.
func ParseMarkers(list []string) []rune {
	var out []rune
	for _, s := range list {
		out = append(out, []rune(s)...)
	}
	return out
}

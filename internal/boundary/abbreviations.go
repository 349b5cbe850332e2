package boundary

// knownAbbreviations returns the lowercase lookup table consulted before a
// period is accepted as a sentence end. Entries are stored without the
// trailing period.
func knownAbbreviations() map[string]bool {
	list := []string{
		// Titles and honorifics
		"mr", "mrs", "ms", "dr", "prof", "rev", "hon", "st", "sr", "jr",
		"capt", "col", "gen", "lt", "sgt",
		// Latin shorthand
		"etc", "et al", "al", "e.g", "i.e", "cf", "viz", "vs", "ca", "approx",
		// Organizations and places
		"inc", "ltd", "co", "corp", "dept", "univ", "assn", "bros", "intl",
		"ave", "blvd", "rd", "mt", "ft",
		// Months commonly abbreviated in citations
		"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept",
		"oct", "nov", "dec",
		// Measurements and misc
		"no", "vol", "pp", "ed", "est", "fig", "ref",
	}
	m := make(map[string]bool, len(list))
	for _, a := range list {
		m[a] = true
	}
	return m
}

package docx

import "strconv"

// numbering resolves w:numPr references against word/numbering.xml and
// keeps the running counters for ordered lists.
type numbering struct {
	abstractNums map[string]*abstractNumXML
	numMappings  map[string]string
	counters     map[string][]int
}

func newNumbering(def *numberingXML) *numbering {
	n := &numbering{
		abstractNums: make(map[string]*abstractNumXML),
		numMappings:  make(map[string]string),
		counters:     make(map[string][]int),
	}
	if def == nil {
		return n
	}
	for i := range def.AbstractNums {
		an := &def.AbstractNums[i]
		n.abstractNums[an.AbstractNumID] = an
	}
	for _, num := range def.Nums {
		n.numMappings[num.NumID] = num.AbstractNumID.Val
	}
	return n
}

// isList reports whether a numbering reference makes the paragraph a list
// item. numId 0 explicitly removes numbering.
func isList(numID string) bool {
	return numID != "" && numID != "0"
}

// level looks up the definition of one list level.
func (n *numbering) level(numID string, ilvl int) (lvlXML, bool) {
	an, ok := n.abstractNums[n.numMappings[numID]]
	if !ok {
		return lvlXML{}, false
	}
	want := strconv.Itoa(ilvl)
	for _, l := range an.Levels {
		if l.ILvl == want {
			return l, true
		}
	}
	return lvlXML{}, false
}

// ordered reports whether the level is numbered rather than bulleted.
// Unknown lists are bullets.
func ordered(l lvlXML) bool {
	switch l.NumFmt.Val {
	case "decimal", "decimalZero", "lowerLetter", "upperLetter", "lowerRoman", "upperRoman":
		return true
	}
	return false
}

// prefix returns the marker for the next item of numID at ilvl: "N." for
// numbered lists and "-" for bullets. Counters for deeper levels restart
// whenever a shallower item appears.
func (n *numbering) prefix(numID string, ilvl int) string {
	ilvl = max(ilvl, 0)
	lvl, ok := n.level(numID, ilvl)
	if !ok || !ordered(lvl) {
		return "-"
	}

	counts := n.counters[numID]
	for len(counts) <= ilvl {
		counts = append(counts, 0)
	}
	counts = counts[:ilvl+1]
	if counts[ilvl] == 0 {
		start := 1
		if s, err := strconv.Atoi(lvl.Start.Val); err == nil {
			start = s
		}
		counts[ilvl] = start
	} else {
		counts[ilvl]++
	}
	n.counters[numID] = counts
	return strconv.Itoa(counts[ilvl]) + "."
}

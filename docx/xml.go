package docx

import "encoding/xml"

// documentXML is word/document.xml.
type documentXML struct {
	XMLName xml.Name `xml:"document"`
	Body    *bodyXML `xml:"body"`
}

// bodyXML collects top-level paragraphs and tables. encoding/xml gathers
// each element kind into its own slice, so the two are not interleaved.
type bodyXML struct {
	Paragraphs []paragraphXML `xml:"p"`
	Tables     []tableXML     `xml:"tbl"`
}

// paragraphXML is a w:p. Runs nested in hyperlinks, smart tags and
// insertions are flattened into Runs; see UnmarshalXML.
type paragraphXML struct {
	Properties paragraphPropsXML
	Runs       []runXML
}

type paragraphPropsXML struct {
	Style      valXML            `xml:"pStyle"`
	NumPr      numberingPropsXML `xml:"numPr"`
	OutlineLvl valXML            `xml:"outlineLvl"`
}

type numberingPropsXML struct {
	ILvl  valXML `xml:"ilvl"`
	NumID valXML `xml:"numId"`
}

// valXML is any element whose payload is a w:val attribute.
type valXML struct {
	Val string `xml:"val,attr"`
}

type runXML struct {
	Properties       runPropsXML           `xml:"rPr"`
	Text             []textXML             `xml:"t"`
	Tabs             []struct{}            `xml:"tab"`
	Breaks           []breakXML            `xml:"br"`
	Drawing          []drawingXML          `xml:"drawing"`
	AlternateContent []alternateContentXML `xml:"AlternateContent"`
}

type runPropsXML struct {
	Bold   *valXML `xml:"b"`
	Italic *valXML `xml:"i"`
}

type textXML struct {
	Value string `xml:",chardata"`
}

type breakXML struct {
	Type string `xml:"type,attr"`
}

// alternateContentXML carries mc:Fallback text, mostly emoji.
type alternateContentXML struct {
	Fallback struct {
		Text []textXML `xml:"t"`
	} `xml:"Fallback"`
}

type drawingXML struct {
	Inline *frameXML `xml:"inline"`
	Anchor *frameXML `xml:"anchor"`
}

// frameXML is the shared shape of wp:inline and wp:anchor.
type frameXML struct {
	Extent struct {
		CX int64 `xml:"cx,attr"`
		CY int64 `xml:"cy,attr"`
	} `xml:"extent"`
	DocPr docPrXML `xml:"docPr"`
	Blip  *blipXML `xml:"graphic>graphicData>pic>blipFill>blip"`
}

type docPrXML struct {
	ID    string `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Descr string `xml:"descr,attr"`
	Title string `xml:"title,attr"`
}

type blipXML struct {
	Embed string `xml:"embed,attr"`
}

type tableXML struct {
	Rows []tableRowXML `xml:"tr"`
}

type tableRowXML struct {
	Cells []tableCellXML `xml:"tc"`
}

type tableCellXML struct {
	Properties struct {
		GridSpan valXML  `xml:"gridSpan"`
		VMerge   *valXML `xml:"vMerge"`
	} `xml:"tcPr"`
	Paragraphs []paragraphXML `xml:"p"`
	Tables     []tableXML     `xml:"tbl"`
}

// stylesXML is word/styles.xml.
type stylesXML struct {
	Styles []styleDefXML `xml:"style"`
}

type styleDefXML struct {
	Type    string `xml:"type,attr"`
	StyleID string `xml:"styleId,attr"`
	Name    valXML `xml:"name"`
	BasedOn valXML `xml:"basedOn"`
	PPr     struct {
		OutlineLvl valXML `xml:"outlineLvl"`
	} `xml:"pPr"`
}

// numberingXML is word/numbering.xml.
type numberingXML struct {
	AbstractNums []abstractNumXML `xml:"abstractNum"`
	Nums         []numXML         `xml:"num"`
}

type abstractNumXML struct {
	AbstractNumID string   `xml:"abstractNumId,attr"`
	Levels        []lvlXML `xml:"lvl"`
}

type lvlXML struct {
	ILvl    string `xml:"ilvl,attr"`
	Start   valXML `xml:"start"`
	NumFmt  valXML `xml:"numFmt"`
	LvlText valXML `xml:"lvlText"`
}

type numXML struct {
	NumID         string `xml:"numId,attr"`
	AbstractNumID valXML `xml:"abstractNumId"`
}

// relationshipsXML is a _rels/*.rels part.
type relationshipsXML struct {
	Relationships []relationshipXML `xml:"Relationship"`
}

type relationshipXML struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// corePropertiesXML is docProps/core.xml.
type corePropertiesXML struct {
	Title    string `xml:"title"`
	Subject  string `xml:"subject"`
	Creator  string `xml:"creator"`
	Keywords string `xml:"keywords"`
	Created  string `xml:"created"`
	Modified string `xml:"modified"`
}

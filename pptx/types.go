package pptx

import "encoding/xml"

// presentationXML is ppt/presentation.xml.
type presentationXML struct {
	XMLName     xml.Name `xml:"presentation"`
	SlideIDList struct {
		SlideIDs []slideIDXML `xml:"sldId"`
	} `xml:"sldIdLst"`
}

type slideIDXML struct {
	ID  string `xml:"id,attr"`
	RID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
}

// slideXML is ppt/slides/slideN.xml.
type slideXML struct {
	CSld struct {
		SpTree shapeTreeXML `xml:"spTree"`
	} `xml:"cSld"`
}

// shapeTreeXML is the content of p:spTree and of every p:grpSp.
type shapeTreeXML struct {
	Sp           []spXML           `xml:"sp"`
	Pic          []picXML          `xml:"pic"`
	GraphicFrame []graphicFrameXML `xml:"graphicFrame"`
	GrpSp        []shapeTreeXML    `xml:"grpSp"`
}

type spXML struct {
	NvSpPr struct {
		CNvPr cNvPrXML `xml:"cNvPr"`
		NvPr  nvPrXML  `xml:"nvPr"`
	} `xml:"nvSpPr"`
	SpPr   spPrXML    `xml:"spPr"`
	TxBody *txBodyXML `xml:"txBody"`
}

type cNvPrXML struct {
	ID    int    `xml:"id,attr"`
	Name  string `xml:"name,attr"`
	Descr string `xml:"descr,attr"`
	Title string `xml:"title,attr"`
}

type nvPrXML struct {
	Ph *struct {
		Type string `xml:"type,attr"`
	} `xml:"ph"`
}

type spPrXML struct {
	Xfrm *xfrmXML `xml:"xfrm"`
}

// xfrmXML holds offsets and extents in EMUs.
type xfrmXML struct {
	Off struct {
		X int64 `xml:"x,attr"`
		Y int64 `xml:"y,attr"`
	} `xml:"off"`
	Ext struct {
		Cx int64 `xml:"cx,attr"`
		Cy int64 `xml:"cy,attr"`
	} `xml:"ext"`
}

type txBodyXML struct {
	P []pXML `xml:"p"`
}

type pXML struct {
	PPr *struct {
		Lvl       int       `xml:"lvl,attr"`
		BuNone    *struct{} `xml:"buNone"`
		BuChar    *struct{} `xml:"buChar"`
		BuAutoNum *struct{} `xml:"buAutoNum"`
	} `xml:"pPr"`
	R   []rXML `xml:"r"`
	Fld []rXML `xml:"fld"`
}

type rXML struct {
	RPr *struct {
		B *int `xml:"b,attr"`
		I *int `xml:"i,attr"`
	} `xml:"rPr"`
	T string `xml:"t"`
}

type picXML struct {
	NvPicPr struct {
		CNvPr cNvPrXML `xml:"cNvPr"`
	} `xml:"nvPicPr"`
	BlipFill struct {
		Blip struct {
			Embed string `xml:"embed,attr"`
		} `xml:"blip"`
	} `xml:"blipFill"`
	SpPr spPrXML `xml:"spPr"`
}

type graphicFrameXML struct {
	Xfrm    *xfrmXML `xml:"xfrm"`
	Graphic struct {
		GraphicData struct {
			Tbl *tblXML `xml:"tbl"`
		} `xml:"graphicData"`
	} `xml:"graphic"`
}

type tblXML struct {
	Tr []struct {
		Tc []tcXML `xml:"tc"`
	} `xml:"tr"`
}

type tcXML struct {
	TxBody   *txBodyXML `xml:"txBody"`
	GridSpan int        `xml:"gridSpan,attr"`
	HMerge   string     `xml:"hMerge,attr"`
	VMerge   string     `xml:"vMerge,attr"`
}

// relationshipsXML is a _rels/*.rels part.
type relationshipsXML struct {
	Relationship []relationshipXML `xml:"Relationship"`
}

type relationshipXML struct {
	ID         string `xml:"Id,attr"`
	Type       string `xml:"Type,attr"`
	Target     string `xml:"Target,attr"`
	TargetMode string `xml:"TargetMode,attr"`
}

// corePropertiesXML is docProps/core.xml.
type corePropertiesXML struct {
	Title   string `xml:"title"`
	Subject string `xml:"subject"`
	Creator string `xml:"creator"`
}

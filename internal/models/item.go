package models

import "strings"

// ItemType is the variant tag of a work item. The set is closed; unknown
// tags are carried through the generic fallback payload so newer submitters
// keep working against an older server.
type ItemType string

const (
	ItemTypeSiteSurvey   ItemType = "site_survey"
	ItemTypeKPIExport    ItemType = "kpi_export"
	ItemTypeCoverageScan ItemType = "coverage_scan"
	ItemTypeGeneric      ItemType = "generic"
)

// KnownItemType reports whether the tag has a dedicated payload variant
func KnownItemType(t ItemType) bool {
	switch t {
	case ItemTypeSiteSurvey, ItemTypeKPIExport, ItemTypeCoverageScan:
		return true
	}
	return false
}

// SiteSurveyData holds the fields of a single-site verification report item
type SiteSurveyData struct {
	SiteID string `json:"site_id"`
	Date   string `json:"date"` // ISO date of the survey
	Tech   string `json:"tech"` // radio technology, defaults to LTE
}

// KPIExportData holds the fields of a KPI export item
type KPIExportData struct {
	Report string `json:"report"`
	Period string `json:"period"`
}

// CoverageScanData holds the fields of a coverage scan item
type CoverageScanData struct {
	CellIDs []string `json:"cell_ids"`
	Raster  string   `json:"raster"`
}

// ItemData is the tagged union of per-variant payloads. Exactly one variant
// pointer is set for known tags; Extra carries the opaque key/value payload
// of unrecognized variants.
type ItemData struct {
	SiteSurvey   *SiteSurveyData   `json:"site_survey,omitempty"`
	KPIExport    *KPIExportData    `json:"kpi_export,omitempty"`
	CoverageScan *CoverageScanData `json:"coverage_scan,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// ItemSpec is the submission-time description of one item: a variant tag
// plus the variant's fields. Unknown tags keep their fields in Extra.
type ItemSpec struct {
	Type         ItemType
	SiteSurvey   *SiteSurveyData
	KPIExport    *KPIExportData
	CoverageScan *CoverageScanData
	Extra        map[string]string
}

// Data materializes the spec into the stored payload, applying variant
// defaults and routing unknown tags to the fallback map.
func (s ItemSpec) Data() ItemData {
	switch s.Type {
	case ItemTypeSiteSurvey:
		data := SiteSurveyData{}
		if s.SiteSurvey != nil {
			data = *s.SiteSurvey
		}
		if data.Tech == "" {
			data.Tech = "LTE"
		}
		return ItemData{SiteSurvey: &data}
	case ItemTypeKPIExport:
		data := KPIExportData{}
		if s.KPIExport != nil {
			data = *s.KPIExport
		}
		return ItemData{KPIExport: &data}
	case ItemTypeCoverageScan:
		data := CoverageScanData{}
		if s.CoverageScan != nil {
			data = *s.CoverageScan
		}
		return ItemData{CoverageScan: &data}
	default:
		extra := s.Extra
		if extra == nil {
			extra = map[string]string{}
		}
		return ItemData{Extra: extra}
	}
}

// Fields flattens the payload for notification and rendering consumers,
// which pattern-match on the item type.
func (d ItemData) Fields() map[string]string {
	switch {
	case d.SiteSurvey != nil:
		return map[string]string{
			"site_id": d.SiteSurvey.SiteID,
			"date":    d.SiteSurvey.Date,
			"tech":    d.SiteSurvey.Tech,
		}
	case d.KPIExport != nil:
		return map[string]string{
			"report": d.KPIExport.Report,
			"period": d.KPIExport.Period,
		}
	case d.CoverageScan != nil:
		return map[string]string{
			"raster":   d.CoverageScan.Raster,
			"cell_ids": strings.Join(d.CoverageScan.CellIDs, ","),
		}
	default:
		out := make(map[string]string, len(d.Extra))
		for k, v := range d.Extra {
			out[k] = v
		}
		return out
	}
}

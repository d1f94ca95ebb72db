package models

import "testing"

func TestItemSpecData(t *testing.T) {
	t.Run("site survey defaults tech", func(t *testing.T) {
		spec := ItemSpec{Type: ItemTypeSiteSurvey, SiteSurvey: &SiteSurveyData{SiteID: "MEL-042", Date: "2026-08-10"}}
		data := spec.Data()
		if data.SiteSurvey == nil {
			t.Fatal("Expected site survey payload")
		}
		if data.SiteSurvey.Tech != "LTE" {
			t.Errorf("Expected default tech LTE, got %s", data.SiteSurvey.Tech)
		}
	})

	t.Run("site survey keeps explicit tech", func(t *testing.T) {
		spec := ItemSpec{Type: ItemTypeSiteSurvey, SiteSurvey: &SiteSurveyData{SiteID: "MEL-042", Date: "2026-08-10", Tech: "NR"}}
		if got := spec.Data().SiteSurvey.Tech; got != "NR" {
			t.Errorf("Expected tech NR, got %s", got)
		}
	})

	t.Run("unknown tag routes to extra", func(t *testing.T) {
		spec := ItemSpec{Type: ItemType("future_thing"), Extra: map[string]string{"k": "v"}}
		data := spec.Data()
		if data.SiteSurvey != nil || data.KPIExport != nil || data.CoverageScan != nil {
			t.Error("Expected no variant payload for unknown tag")
		}
		if data.Extra["k"] != "v" {
			t.Error("Expected extra payload to be carried through")
		}
	})

	t.Run("unknown tag without payload yields empty map", func(t *testing.T) {
		data := ItemSpec{Type: ItemTypeGeneric}.Data()
		if data.Extra == nil {
			t.Error("Expected non-nil extra map")
		}
	})
}

func TestItemDataFields(t *testing.T) {
	survey := ItemData{SiteSurvey: &SiteSurveyData{SiteID: "PER-007", Date: "2026-08-12", Tech: "LTE"}}
	fields := survey.Fields()
	if fields["site_id"] != "PER-007" || fields["date"] != "2026-08-12" || fields["tech"] != "LTE" {
		t.Errorf("Unexpected survey fields: %v", fields)
	}

	scan := ItemData{CoverageScan: &CoverageScanData{CellIDs: []string{"c1", "c2"}, Raster: "50m"}}
	fields = scan.Fields()
	if fields["cell_ids"] != "c1,c2" {
		t.Errorf("Expected joined cell ids, got %s", fields["cell_ids"])
	}

	extra := ItemData{Extra: map[string]string{"region": "west"}}
	if got := extra.Fields()["region"]; got != "west" {
		t.Errorf("Expected extra field passthrough, got %s", got)
	}
}

func TestKnownItemType(t *testing.T) {
	if !KnownItemType(ItemTypeSiteSurvey) || !KnownItemType(ItemTypeKPIExport) || !KnownItemType(ItemTypeCoverageScan) {
		t.Error("Expected dedicated variants to be known")
	}
	if KnownItemType(ItemTypeGeneric) || KnownItemType(ItemType("nope")) {
		t.Error("Expected generic and unknown tags to be unknown")
	}
}

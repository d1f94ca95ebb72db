package models

import "testing"

func TestNewJobGroup(t *testing.T) {
	specs := []ItemSpec{
		{Type: ItemTypeSiteSurvey, SiteSurvey: &SiteSurveyData{SiteID: "SYD-001", Date: "2026-08-01"}},
		{Type: ItemTypeKPIExport, KPIExport: &KPIExportData{Report: "availability", Period: "2026-07"}},
		{Type: ItemType("custom_audit"), Extra: map[string]string{"region": "west"}},
	}

	group := NewJobGroup("alice", specs)

	if group.ID == "" {
		t.Fatal("Expected group ID to be assigned")
	}
	if group.Status != GroupStatusQueued {
		t.Errorf("Expected status queued, got %s", group.Status)
	}
	if len(group.Items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(group.Items))
	}

	for i, item := range group.Items {
		if item.ID == "" {
			t.Errorf("Item %d: expected ID to be assigned", i)
		}
		if item.GroupID != group.ID {
			t.Errorf("Item %d: expected group ID %s, got %s", i, group.ID, item.GroupID)
		}
		if item.Seq != i {
			t.Errorf("Item %d: expected seq %d, got %d", i, i, item.Seq)
		}
		if item.Status != ItemStatusQueued {
			t.Errorf("Item %d: expected status queued, got %s", i, item.Status)
		}
	}

	if err := group.Validate(); err != nil {
		t.Errorf("Expected valid group, got: %v", err)
	}

	ids := group.ItemIDs()
	if len(ids) != 3 {
		t.Fatalf("Expected 3 item ids, got %d", len(ids))
	}
	for i, id := range ids {
		if id != group.Items[i].ID {
			t.Errorf("ItemIDs()[%d] out of creation order", i)
		}
	}
}

func TestJobGroupValidate(t *testing.T) {
	group := NewJobGroup("", nil)
	if err := group.Validate(); err == nil {
		t.Error("Expected validation error for missing username")
	}

	group = NewJobGroup("bob", []ItemSpec{{Type: ItemTypeGeneric}})
	group.Items[0].GroupID = "other"
	if err := group.Validate(); err == nil {
		t.Error("Expected validation error for item group mismatch")
	}
}

func TestPercentDone(t *testing.T) {
	group := NewJobGroup("carol", []ItemSpec{
		{Type: ItemTypeGeneric}, {Type: ItemTypeGeneric}, {Type: ItemTypeGeneric}, {Type: ItemTypeGeneric},
	})

	if got := group.PercentDone(); got != 0 {
		t.Errorf("Expected 0%%, got %f", got)
	}

	group.Items[0].Status = ItemStatusOK
	group.Items[1].Status = ItemStatusError
	if got := group.PercentDone(); got != 25 {
		t.Errorf("Expected 25%%, got %f", got)
	}

	empty := NewJobGroup("carol", nil)
	if got := empty.PercentDone(); got != 0 {
		t.Errorf("Expected 0%% for empty group, got %f", got)
	}
}

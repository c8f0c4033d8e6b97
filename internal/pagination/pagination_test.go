package pagination_test

import (
	"testing"

	"finpanel/internal/models"
	"finpanel/internal/pagination"
	"finpanel/internal/testutil"
)

func TestPageRequest_Defaults(t *testing.T) {
	tests := []struct {
		name     string
		in       pagination.PageRequest
		page     int
		pageSize int
	}{
		{"zero values", pagination.PageRequest{}, 1, pagination.DefaultPageSize},
		{"explicit", pagination.PageRequest{Page: 3, PageSize: 10}, 3, 10},
		{"oversized page", pagination.PageRequest{Page: 1, PageSize: 500}, 1, pagination.MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.in
			req.Defaults()
			if req.Page != tt.page || req.PageSize != tt.pageSize {
				t.Errorf("got page=%d size=%d, want page=%d size=%d", req.Page, req.PageSize, tt.page, tt.pageSize)
			}
		})
	}
}

func TestNewPageResponse(t *testing.T) {
	resp := pagination.NewPageResponse[int](nil, 2, 20, 41)

	if resp.TotalPages != 3 {
		t.Errorf("expected 3 pages, got %d", resp.TotalPages)
	}
	if resp.Data == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestFind(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	for _, name := range []string{"Bread", "Apple", "Coffee"} {
		testutil.CreateTestItem(t, db, name, 100)
	}

	t.Run("natural order", func(t *testing.T) {
		resp, err := pagination.Find[models.Item](db.Model(&models.Item{}), pagination.PageRequest{PageSize: 2}, pagination.Order{Column: "name"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.TotalItems != 3 || resp.TotalPages != 2 {
			t.Errorf("unexpected metadata %+v", resp)
		}
		if len(resp.Data) != 2 || resp.Data[0].Name != "Apple" || resp.Data[1].Name != "Bread" {
			t.Errorf("unexpected page %+v", resp.Data)
		}
	})

	t.Run("explicit sort flips direction", func(t *testing.T) {
		resp, err := pagination.Find[models.Item](db.Model(&models.Item{}), pagination.PageRequest{Sort: "desc"}, pagination.Order{Column: "name"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(resp.Data) != 3 || resp.Data[0].Name != "Coffee" {
			t.Errorf("unexpected page %+v", resp.Data)
		}
	})

	t.Run("second page with filter", func(t *testing.T) {
		base := db.Model(&models.Item{}).Where("name <> ?", "Bread")
		resp, err := pagination.Find[models.Item](base, pagination.PageRequest{Page: 2, PageSize: 1}, pagination.Order{Column: "name"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if resp.TotalItems != 2 || len(resp.Data) != 1 || resp.Data[0].Name != "Coffee" {
			t.Errorf("unexpected page %+v", resp)
		}
	})
}

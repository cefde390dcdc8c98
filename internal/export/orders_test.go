package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/smirnovmax/artstore-system/internal/model"
)

func TestOrdersReport(t *testing.T) {
	orders := []model.Order{
		{
			ID:     "1700000000-AB12CD",
			UserID: 7,
			Items: []model.OrderItem{
				{Title: "Холст 40x60", Quantity: 2, Price: 150_00},
			},
			SubtotalCents: 300_00,
			DiscountCents: 15_00,
			TotalCents:    285_00,
			Status:        model.OrderStatusWorking,
			CreatedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
		{
			ID:            "1700000001-EF34GH",
			UserID:        8,
			Service:       "Оформление в раму",
			SubtotalCents: 80_00,
			TotalCents:    80_00,
			Status:        model.OrderStatusPending,
			CreatedAt:     time.Date(2025, 3, 2, 9, 30, 0, 0, time.UTC),
		},
	}

	data, err := OrdersReport(orders)
	if err != nil {
		t.Fatalf("OrdersReport() error = %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("open report: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("get rows: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3 (header + 2 orders)", len(rows))
	}
	if rows[1][0] != "1700000000-AB12CD" {
		t.Errorf("first order id = %q", rows[1][0])
	}
	if rows[1][2] != "Холст 40x60 x2" {
		t.Errorf("items summary = %q", rows[1][2])
	}
	if rows[2][2] != "Оформление в раму" {
		t.Errorf("service summary = %q", rows[2][2])
	}
}

// Package export формирует отчёты для администратора.
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/smirnovmax/artstore-system/internal/model"
)

const sheetName = "Заказы"

var headers = []string{
	"Номер", "Пользователь", "Состав", "Сумма", "Скидка",
	"Итого", "Кешбэк списан", "Кешбэк начислен", "Статус", "Создан",
}

// OrdersReport собирает xlsx-отчёт по заказам. Денежные значения
// выгружаются в валютных единицах.
func OrdersReport(orders []model.Order) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, fmt.Errorf("header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, fmt.Errorf("set header: %w", err)
		}
	}

	for i, o := range orders {
		row := []interface{}{
			o.ID,
			o.UserID,
			itemsSummary(o),
			float64(o.SubtotalCents) / 100,
			float64(o.DiscountCents) / 100,
			float64(o.TotalCents) / 100,
			float64(o.CashbackUsedCents) / 100,
			float64(o.CashbackEarnedCents) / 100,
			string(o.Status),
			o.CreatedAt.Format("2006-01-02 15:04"),
		}

		for j, v := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("row cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, fmt.Errorf("set cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

// itemsSummary сворачивает позиции заказа в одну строку.
func itemsSummary(o model.Order) string {
	if o.Service != "" {
		return o.Service
	}

	s := ""
	for i, it := range o.Items {
		if i > 0 {
			s += "; "
		}
		s += fmt.Sprintf("%s x%d", it.Title, it.Quantity)
	}
	return s
}

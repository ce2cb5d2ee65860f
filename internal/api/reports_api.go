package api

import (
	"fmt"
	"net/http"
	"time"

	"chargehub/internal/metrics"
	"chargehub/internal/models"

	"github.com/xuri/excelize/v2"
)

var reportColumns = []string{
	"Booking ID", "Vehicle", "License Plate", "Station", "Location",
	"Start Time", "End Time", "Duration (min)", "Status", "Created At",
}

// handleBookingsReport exports the caller's bookings as an xlsx workbook.
func (s *Server) handleBookingsReport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("bookings_report")

	claims := sessionClaims(r)
	bookings, err := s.db.ListUserBookings(r.Context(), claims.UserID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	file := excelize.NewFile()
	defer file.Close()

	const sheet = "Bookings"
	file.SetSheetName("Sheet1", sheet)

	for i, col := range reportColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := file.SetCellValue(sheet, cell, col); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	if style, err := file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	}); err == nil {
		endCell, _ := excelize.CoordinatesToCellName(len(reportColumns), 1)
		_ = file.SetCellStyle(sheet, "A1", endCell, style)
	}

	for i, b := range bookings {
		row := reportRow(&b)
		for j, val := range row {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			if err := file.SetCellValue(sheet, cell, val); err != nil {
				s.writeDomainError(w, err)
				return
			}
		}
	}

	filename := fmt.Sprintf("bookings_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := file.Write(w); err != nil {
		s.logger.Error().Err(err).Msg("failed to stream report")
	}
}

func reportRow(b *models.Booking) []any {
	vehicle, plate := "", ""
	if b.Vehicle != nil {
		vehicle = fmt.Sprintf("%s %s", b.Vehicle.Make, b.Vehicle.Model)
		plate = b.Vehicle.LicensePlate
	}
	station, location := "", ""
	if b.Station != nil {
		station = b.Station.Name
		location = b.Station.Location
	}
	return []any{
		b.ID,
		vehicle,
		plate,
		station,
		location,
		b.StartTime.Format(time.RFC3339),
		b.EndTime.Format(time.RFC3339),
		int(b.Interval().Duration().Minutes()),
		string(b.Status),
		b.CreatedAt.Format(time.RFC3339),
	}
}

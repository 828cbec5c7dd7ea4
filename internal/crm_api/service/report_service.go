package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/google/uuid"
	"github.com/jung-kurt/gofpdf/v2"
	"github.com/plotbook-crm/internal/domain/customer"
	"github.com/plotbook-crm/internal/platform/cache"
	"github.com/shopspring/decimal"
)

var (
	ErrUnknownTemplate = errors.New("unknown whatsapp template")
	ErrNoPhone         = errors.New("customer has no phone number")
	ErrNoInstallment   = errors.New("customer has no installment for this template")
)

// WhatsApp template names
const (
	TemplatePaymentReminder = "payment_reminder"
	TemplatePaymentReceipt  = "payment_receipt"
	TemplateChequeBounce    = "cheque_bounce"
	TemplateBookingWelcome  = "booking_welcome"
)

// defaultExportLimit caps the rows written by a single CSV export
const defaultExportLimit = 10000

const displayDate = "02-Jan-2006"

var whatsappTemplates = template.Must(template.New("whatsapp").Parse(`
{{define "payment_reminder"}}Dear {{.Name}},
This is a gentle reminder that Rs. {{.Balance}} is outstanding on Plot {{.PlotNumber}}, {{.ProjectName}}{{if .NextDueDate}}, due on {{.NextDueDate}}{{end}}.
Total: Rs. {{.Total}} | Received: Rs. {{.Received}}
Kindly arrange the payment at the earliest. Thank you.{{end}}
{{define "payment_receipt"}}Dear {{.Name}},
We have received Rs. {{.Amount}} on {{.Date}}{{if .Mode}} via {{.Mode}}{{end}} towards Plot {{.PlotNumber}}, {{.ProjectName}}.
Total received: Rs. {{.Received}} | Balance: Rs. {{.Balance}}
Thank you for your payment.{{end}}
{{define "cheque_bounce"}}Dear {{.Name}},
Your payment of Rs. {{.Amount}} dated {{.Date}}{{if .Reference}} (Ref. {{.Reference}}){{end}} towards Plot {{.PlotNumber}}, {{.ProjectName}} could not be cleared.
Outstanding balance: Rs. {{.Balance}}
Please contact our office to arrange a replacement payment.{{end}}
{{define "booking_welcome"}}Dear {{.Name}},
Welcome! Your booking of Plot {{.PlotNumber}}{{if .PlotSize}} ({{.PlotSize}}){{end}} at {{.ProjectName}} is confirmed.
Customer ID: {{.Code}}
Sale value: Rs. {{.Total}} | Booking amount: Rs. {{.Booking}}
We look forward to serving you.{{end}}
`))

type templateData struct {
	Name        string
	Code        string
	ProjectName string
	PlotNumber  string
	PlotSize    string
	Total       string
	Booking     string
	Received    string
	Balance     string
	NextDueDate string
	Amount      string
	Date        string
	Mode        string
	Reference   string
}

// ReportServiceImpl implements the ReportService interface
type ReportServiceImpl struct {
	customerRepo customer.Repository
	cache        cache.Store
	cacheTTL     time.Duration
	logger       *slog.Logger
	now          func() time.Time
	exportLimit  int
}

// NewReportService creates a new report service
func NewReportService(logger *slog.Logger, customerRepo customer.Repository, cacheStore cache.Store, cacheTTL time.Duration) ReportService {
	return &ReportServiceImpl{
		customerRepo: customerRepo,
		cache:        cacheStore,
		cacheTTL:     cacheTTL,
		logger:       logger,
		now:          time.Now,
		exportLimit:  defaultExportLimit,
	}
}

// Dashboard returns the booking summary, served from cache when possible
func (s *ReportServiceImpl) Dashboard(ctx context.Context) (*customer.Summary, error) {
	if data, ok := s.cache.Get(ctx, cache.DashboardSummaryKey); ok {
		var summary customer.Summary
		if err := json.Unmarshal(data, &summary); err == nil {
			return &summary, nil
		}
		s.logger.Warn("Discarding undecodable cached dashboard summary")
	}

	summary, err := s.customerRepo.Summary(ctx, s.now())
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(summary); err == nil {
		s.cache.Set(ctx, cache.DashboardSummaryKey, data, s.cacheTTL)
	}
	return summary, nil
}

// StatementPDF renders the account statement of one customer
func (s *ReportServiceImpl) StatementPDF(ctx context.Context, customerID uuid.UUID) ([]byte, *customer.Customer, error) {
	c, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, nil, err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	// Header
	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Plot Booking - Customer Statement", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Generated: %s", s.now().Format("02-Jan-2006 03:04 PM")), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	// Customer block
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Customer Information", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, fmt.Sprintf("Name: %s", c.Name), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Customer ID: %s", c.CustomerCode), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Phone: %s", c.Phone), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Status: %s", c.Status), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Project: %s", c.ProjectName), "LB", 0, "L", false, 0, "")
	plot := c.PlotNumber
	if c.PlotSize != "" {
		plot = fmt.Sprintf("%s (%s)", c.PlotNumber, c.PlotSize)
	}
	pdf.CellFormat(95, 7, fmt.Sprintf("Plot: %s", plot), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Booking Date: %s", formatDate(c.BookingDate)), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Next Due: %s", formatDatePtr(c.NextDueDate)), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	// Installments
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Installments", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(12, 7, "No", "1", 0, "C", true, 0, "")
	pdf.CellFormat(26, 7, "Date", "1", 0, "C", true, 0, "")
	pdf.CellFormat(26, 7, "Mode", "1", 0, "C", true, 0, "")
	pdf.CellFormat(34, 7, "Reference", "1", 0, "C", true, 0, "")
	pdf.CellFormat(28, 7, "Status", "1", 0, "C", true, 0, "")
	pdf.CellFormat(32, 7, "Received", "1", 0, "C", true, 0, "")
	pdf.CellFormat(32, 7, "Balance", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	pdf.SetFillColor(255, 220, 220)
	for _, inst := range c.Installments {
		bounced := inst.IsBounced()
		pdf.CellFormat(12, 6, strconv.Itoa(inst.InstallmentNo), "1", 0, "C", bounced, 0, "")
		pdf.CellFormat(26, 6, formatDate(inst.InstallmentDate), "1", 0, "C", bounced, 0, "")
		pdf.CellFormat(26, 6, truncate(inst.PaymentMode, 12), "1", 0, "C", bounced, 0, "")
		pdf.CellFormat(34, 6, truncate(inst.Reference, 16), "1", 0, "L", bounced, 0, "")
		pdf.CellFormat(28, 6, inst.Status, "1", 0, "C", bounced, 0, "")
		pdf.CellFormat(32, 6, "Rs. "+money(inst.ReceivedAmount), "1", 0, "R", bounced, 0, "")
		pdf.CellFormat(32, 6, "Rs. "+money(inst.BalanceAmount), "1", 1, "R", bounced, 0, "")
	}
	if len(c.Installments) == 0 {
		pdf.CellFormat(190, 6, "No installments recorded", "1", 1, "C", false, 0, "")
	}
	pdf.Ln(5)

	// Financial summary
	pdf.SetFont("Arial", "B", 12)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(190, 8, "Financial Summary", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(63, 8, "Sale Value: Rs. "+money(c.TotalAmount), "1", 0, "C", false, 0, "")
	pdf.CellFormat(63, 8, "Booking: Rs. "+money(c.BookingAmount), "1", 0, "C", false, 0, "")
	pdf.CellFormat(64, 8, "Received: Rs. "+money(c.ReceivedAmount), "1", 1, "C", false, 0, "")

	if c.BalanceAmount.IsPositive() {
		pdf.SetFillColor(255, 200, 200)
	} else {
		pdf.SetFillColor(200, 255, 200)
	}
	pdf.SetFont("Arial", "B", 14)
	balanceText := "Balance Due: Rs. " + money(c.BalanceAmount)
	if !c.BalanceAmount.IsPositive() {
		balanceText = "FULLY PAID"
	}
	pdf.CellFormat(190, 10, balanceText, "1", 1, "C", true, 0, "")

	if n := c.BouncedCount(); n > 0 {
		pdf.Ln(3)
		pdf.SetFont("Arial", "I", 9)
		pdf.CellFormat(190, 5, fmt.Sprintf("%d bounced payment(s) are shown highlighted and excluded from the received total.", n), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, nil, fmt.Errorf("failed to render statement: %w", err)
	}
	return buf.Bytes(), c, nil
}

// ExportCSV writes the customers matching filter as spreadsheet rows, up to
// the export cap. Truncated is set when more customers matched.
func (s *ReportServiceImpl) ExportCSV(ctx context.Context, filter customer.Filter) (*CSVExport, error) {
	filter.Limit = s.exportLimit + 1
	filter.Offset = 0

	customers, err := s.customerRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	truncated := len(customers) > s.exportLimit
	if truncated {
		customers = customers[:s.exportLimit]
		s.logger.Warn("Customer export truncated at row cap; narrow the filters to export the rest",
			"limit", s.exportLimit, "status", filter.Status, "project", filter.ProjectName, "search", filter.Search,
		)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{
		"#", "Customer ID", "Name", "Phone", "Email", "Project", "Plot", "Plot Size",
		"Booking Date", "Total Amount", "Booking Amount", "Received Amount", "Balance Amount",
		"Next Due Date", "Status",
	}); err != nil {
		return nil, err
	}

	for i, c := range customers {
		if err := w.Write([]string{
			strconv.Itoa(i + 1),
			c.CustomerCode,
			c.Name,
			c.Phone,
			c.Email,
			c.ProjectName,
			c.PlotNumber,
			c.PlotSize,
			formatDate(c.BookingDate),
			money(c.TotalAmount),
			money(c.BookingAmount),
			money(c.ReceivedAmount),
			money(c.BalanceAmount),
			formatDatePtr(c.NextDueDate),
			string(c.Status),
		}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	s.logger.Info("Customer export generated", "rows", len(customers), "truncated", truncated)
	return &CSVExport{Data: buf.Bytes(), Rows: len(customers), Truncated: truncated}, nil
}

// WhatsApp renders a message template for the customer and its share link
func (s *ReportServiceImpl) WhatsApp(ctx context.Context, customerID uuid.UUID, name string) (*WhatsAppMessage, error) {
	switch name {
	case TemplatePaymentReminder, TemplatePaymentReceipt, TemplateChequeBounce, TemplateBookingWelcome:
	default:
		return nil, ErrUnknownTemplate
	}

	c, err := s.customerRepo.GetByID(ctx, customerID)
	if err != nil {
		return nil, err
	}

	phone := normalizePhone(c.Phone)
	if phone == "" {
		return nil, ErrNoPhone
	}

	data := templateData{
		Name:        c.Name,
		Code:        c.CustomerCode,
		ProjectName: c.ProjectName,
		PlotNumber:  c.PlotNumber,
		PlotSize:    c.PlotSize,
		Total:       money(c.TotalAmount),
		Booking:     money(c.BookingAmount),
		Received:    money(c.ReceivedAmount),
		Balance:     money(c.BalanceAmount),
	}
	if c.NextDueDate != nil {
		data.NextDueDate = formatDate(*c.NextDueDate)
	}

	switch name {
	case TemplatePaymentReceipt:
		inst := lastInstallment(c, func(i *customer.Installment) bool { return !i.IsBounced() })
		if inst == nil {
			return nil, ErrNoInstallment
		}
		fillInstallment(&data, inst)
	case TemplateChequeBounce:
		inst := lastInstallment(c, (*customer.Installment).IsBounced)
		if inst == nil {
			return nil, ErrNoInstallment
		}
		fillInstallment(&data, inst)
	}

	var text strings.Builder
	if err := whatsappTemplates.ExecuteTemplate(&text, name, data); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", name, err)
	}

	msg := text.String()
	return &WhatsAppMessage{
		Template: name,
		Phone:    phone,
		Text:     msg,
		Link:     "https://wa.me/" + phone + "?text=" + strings.ReplaceAll(url.QueryEscape(msg), "+", "%20"),
	}, nil
}

func lastInstallment(c *customer.Customer, match func(*customer.Installment) bool) *customer.Installment {
	for i := len(c.Installments) - 1; i >= 0; i-- {
		if match(&c.Installments[i]) {
			return &c.Installments[i]
		}
	}
	return nil
}

func fillInstallment(data *templateData, inst *customer.Installment) {
	data.Amount = money(inst.ReceivedAmount)
	data.Date = formatDate(inst.InstallmentDate)
	data.Mode = inst.PaymentMode
	data.Reference = inst.Reference
}

// normalizePhone keeps digits only and prefixes 10-digit Indian numbers with 91
func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 10:
		return "91" + digits
	case len(digits) == 11 && digits[0] == '0':
		return "91" + digits[1:]
	}
	return digits
}

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(displayDate)
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatDate(*t)
}

// truncate shortens s to at most n characters, never splitting a rune
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

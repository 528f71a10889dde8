package models

// ExportFormat enumerates supported report formats.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Valid reports whether f is a supported format.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatCSV || f == ExportFormatPDF
}

// ProcessStatus summarises where an absence process stands in reports.
type ProcessStatus string

const (
	ProcessStatusOpen      ProcessStatus = "open"
	ProcessStatusPending   ProcessStatus = "pending"
	ProcessStatusConcluded ProcessStatus = "concluded"
)

// Label returns the Portuguese text printed in reports.
func (s ProcessStatus) Label() string {
	switch s {
	case ProcessStatusOpen:
		return "Em andamento"
	case ProcessStatusPending:
		return "Pendente"
	case ProcessStatusConcluded:
		return "Concluído"
	default:
		return string(s)
	}
}

// AbsenceReportFilter narrows the absence process report.
type AbsenceReportFilter struct {
	StudentID string        `form:"student_id"`
	ClassName string        `form:"class_name"`
	Status    ProcessStatus `form:"status"`
}

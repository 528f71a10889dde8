package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/busca-ativa-api/internal/models"
	"github.com/noah-isme/busca-ativa-api/internal/process"
	appErrors "github.com/noah-isme/busca-ativa-api/pkg/errors"
	"github.com/noah-isme/busca-ativa-api/pkg/export"
)

type absenceReportSource interface {
	ListAll(ctx context.Context) ([]models.AbsenceAction, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.AbsenceAction, error)
}

type studentDirectory interface {
	Lookup(ctx context.Context, ids []string) (map[string]models.Student, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportFile is a rendered report ready to be streamed.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders the absence process report.
type ExportService struct {
	actions  absenceReportSource
	students studentDirectory
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// spreadsheet friendly CSV (';' with BOM) and the default PDF layout.
func NewExportService(actions absenceReportSource, students studentDirectory, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter(export.WithDelimiter(';'), export.WithBOM())
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		actions:  actions,
		students: students,
		csv:      csv,
		pdf:      pdf,
		logger:   logger,
		now:      time.Now,
	}
}

var absenceReportHeaders = []string{"Aluno", "Matrícula", "Turma", "Processo", "Última etapa", "Situação", "Próxima etapa", "Atualizado em"}

// AbsenceReport lists one row per absence process matching filter.
func (s *ExportService) AbsenceReport(ctx context.Context, filter models.AbsenceReportFilter, format models.ExportFormat) (*ExportFile, error) {
	if !format.Valid() {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format)),
			map[string]interface{}{"fields": map[string]string{"format": "oneof"}},
		)
	}
	switch filter.Status {
	case "", models.ProcessStatusOpen, models.ProcessStatusPending, models.ProcessStatusConcluded:
	default:
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", filter.Status)),
			map[string]interface{}{"fields": map[string]string{"status": "oneof"}},
		)
	}

	dataset, err := s.buildAbsenceDataset(ctx, filter)
	if err != nil {
		return nil, err
	}

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv; charset=utf-8"
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, "Relatório de busca ativa")
		contentType = "application/pdf"
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	s.logger.Info("absence report generated",
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &ExportFile{
		Filename:    s.buildFilename(filter, format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

func (s *ExportService) buildAbsenceDataset(ctx context.Context, filter models.AbsenceReportFilter) (export.Dataset, error) {
	var (
		actions []models.AbsenceAction
		err     error
	)
	if filter.StudentID != "" {
		actions, err = s.actions.ListByStudent(ctx, filter.StudentID)
	} else {
		actions, err = s.actions.ListAll(ctx)
	}
	if err != nil {
		return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load absence actions")
	}

	snapshot := process.NewSnapshot(actions)
	studentIDs := distinctStudents(actions)
	students, err := s.students.Lookup(ctx, studentIDs)
	if err != nil {
		return export.Dataset{}, err
	}

	rows := make([]map[string]string, 0)
	for _, studentID := range studentIDs {
		student, known := students[studentID]
		if !known {
			s.logger.Warn("absence actions reference unknown student", zap.String("student_id", studentID))
			student = models.Student{ID: studentID, FullName: studentID}
		}
		if filter.ClassName != "" && !strings.EqualFold(student.ClassName, filter.ClassName) {
			continue
		}
		for _, p := range process.GroupProcesses(studentID, snapshot) {
			status := processStatus(p)
			if filter.Status != "" && status != filter.Status {
				continue
			}
			rows = append(rows, processRow(student, p, status))
		}
	}
	return export.Dataset{Headers: absenceReportHeaders, Rows: rows}, nil
}

func processStatus(p process.Process) models.ProcessStatus {
	switch {
	case p.Concluded():
		return models.ProcessStatusConcluded
	case process.LastActionPending(p.Actions).Pending:
		return models.ProcessStatusPending
	default:
		return models.ProcessStatusOpen
	}
}

func processRow(student models.Student, p process.Process, status models.ProcessStatus) map[string]string {
	lastStep := ""
	if last, ok := p.Last(); ok {
		lastStep = last.ActionType.Label()
	}
	nextStep := "-"
	if next, err := process.NextActionInProcess(p.Actions); err == nil {
		nextStep = next.Label()
	}
	return map[string]string{
		"Aluno":         student.FullName,
		"Matrícula":     student.Enrollment,
		"Turma":         student.ClassName,
		"Processo":      p.ID,
		"Última etapa":  lastStep,
		"Situação":      status.Label(),
		"Próxima etapa": nextStep,
		"Atualizado em": p.LastActivity().Format("02/01/2006 15:04"),
	}
}

func distinctStudents(actions []models.AbsenceAction) []string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, action := range actions {
		if _, ok := seen[action.StudentID]; ok {
			continue
		}
		seen[action.StudentID] = struct{}{}
		ids = append(ids, action.StudentID)
	}
	sort.Strings(ids)
	return ids
}

func (s *ExportService) buildFilename(filter models.AbsenceReportFilter, format models.ExportFormat) string {
	scope := "geral"
	switch {
	case filter.StudentID != "":
		scope = sanitizeFilename(filter.StudentID)
	case filter.ClassName != "":
		scope = sanitizeFilename(filter.ClassName)
	}
	return fmt.Sprintf("busca_ativa_%s_%s.%s", scope, s.now().UTC().Format("20060102_150405"), format)
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 60 {
		return result[:60]
	}
	return result
}

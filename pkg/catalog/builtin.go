package catalog

import (
	"log/slog"

	"github.com/HarrySunV9x/hana-perf/pkg/models"
)

// SceneAnalysisWorkflow is the built-in workflow driving scene report
// generation.
const SceneAnalysisWorkflow = "scene_analysis"

// Built-in step names, in execution order.
const (
	StepInitWorkflow     = "init_workflow"
	StepSearchFiles      = "search_files"
	StepExtractLogs      = "extract_logs"
	StepAnalyzeTimeline  = "analyze_timeline"
	StepGenerateAnalysis = "generate_analysis"
	StepFinalizeReport   = "finalize_report"
)

// Well-known data keys shared between the built-in steps.
const (
	KeyWorkflowID    = "workflow_id"
	KeyLogPath       = "log_path"
	KeyTimestamp     = "timestamp"
	KeyTimeWindow    = "time_window"
	KeyEventsFiles   = "events_files"
	KeyFilesCount    = "files_count"
	KeyTotalSize     = "total_size"
	KeyFileLogsMap   = "file_logs_map"
	KeyTotalLogs     = "total_logs"
	KeyFilesWithLogs = "files_with_logs"
	KeyTimeline      = "timeline_events"
	KeyActivityFlow  = "activity_flow"
	KeyAnalysisHTML  = "analysis_html"
	KeyReportPath    = "report_path"
)

// NewDefault builds the catalog populated with the scene analysis workflow and
// its six ordered steps.
func NewDefault(logger *slog.Logger) (*Catalog, error) {
	c := New(logger)

	steps := []*models.StepDefinition{
		{
			Name:        StepInitWorkflow,
			DisplayName: "Initialize Workflow",
			Description: "Creates the run state and renders the report header",
			Kind:        models.StepKindInit,
			Inputs:      []string{},
			Outputs:     []string{KeyWorkflowID, KeyLogPath, KeyTimestamp, KeyTimeWindow},
			EmitsHTML:   true,
			Order:       1,
		},
		{
			Name:        StepSearchFiles,
			DisplayName: "Search Log Files",
			Description: "Searches the log directory for events log files",
			Kind:        models.StepKindSearch,
			Inputs:      []string{KeyLogPath},
			Outputs:     []string{KeyEventsFiles, KeyFilesCount, KeyTotalSize},
			EmitsHTML:   true,
			Order:       2,
		},
		{
			Name:        StepExtractLogs,
			DisplayName: "Extract Logs",
			Description: "Extracts input_focus lines inside the time window from each file",
			Kind:        models.StepKindExtract,
			Inputs:      []string{KeyEventsFiles, KeyTimestamp, KeyTimeWindow},
			Outputs:     []string{KeyFileLogsMap, KeyTotalLogs, KeyFilesWithLogs},
			EmitsHTML:   true,
			Order:       3,
		},
		{
			Name:        StepAnalyzeTimeline,
			DisplayName: "Analyze Timeline",
			Description: "Parses extracted lines into a focus-switch timeline",
			Kind:        models.StepKindAnalyze,
			Inputs:      []string{KeyFileLogsMap},
			Outputs:     []string{KeyTimeline, KeyActivityFlow},
			EmitsHTML:   true,
			Order:       4,
		},
		{
			Name:        StepGenerateAnalysis,
			DisplayName: "Generate Analysis",
			Description: "Records the caller-provided scene analysis",
			Kind:        models.StepKindGenerate,
			Inputs:      []string{KeyFileLogsMap, KeyTimeline, KeyAnalysisHTML},
			Outputs:     []string{KeyAnalysisHTML},
			EmitsHTML:   true,
			Order:       5,
		},
		{
			Name:        StepFinalizeReport,
			DisplayName: "Finalize Report",
			Description: "Assembles all fragments into the final report",
			Kind:        models.StepKindFinalize,
			Inputs:      []string{KeyWorkflowID},
			Outputs:     []string{KeyReportPath},
			EmitsHTML:   false,
			Order:       6,
		},
	}

	for _, step := range steps {
		if err := c.RegisterStep(step); err != nil {
			return nil, err
		}
	}

	window := models.FloatValue(20.0)

	workflow := &models.WorkflowDefinition{
		Name:        SceneAnalysisWorkflow,
		DisplayName: "Scene Analysis",
		Description: "Analyzes user interaction scenes from input_focus logs",
		Steps: []string{
			StepInitWorkflow,
			StepSearchFiles,
			StepExtractLogs,
			StepAnalyzeTimeline,
			StepGenerateAnalysis,
			StepFinalizeReport,
		},
		Params: map[string]models.ParamSpec{
			KeyLogPath: {
				Type:        models.ParamTypeString,
				Required:    true,
				Description: "Log directory or file path",
			},
			KeyTimestamp: {
				Type:        models.ParamTypeString,
				Required:    true,
				Description: "Moment to analyze, format MM-DD HH:MM:SS.ffffff",
			},
			KeyTimeWindow: {
				Type:        models.ParamTypeFloat,
				Required:    false,
				Default:     &window,
				Description: "Time window size in seconds",
			},
		},
	}

	if err := c.RegisterWorkflow(workflow); err != nil {
		return nil, err
	}

	return c, nil
}

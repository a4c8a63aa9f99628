package services

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"time"

	"github.com/anjiri1684/smartscore/models"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/pkg/errors"
)

//go:embed templates/result_slip.html
var templateFS embed.FS

var resultSlipTemplate = template.Must(template.New("result_slip.html").
	Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
	ParseFS(templateFS, "templates/result_slip.html"))

const pdfRenderTimeout = 30 * time.Second

type slipAnswer struct {
	Question string
	Selected string
	Correct  bool
	Marks    int
	Awarded  int
}

type resultSlip struct {
	ExamTitle   string
	CourseName  string
	StudentName string
	StudentID   string
	SubmittedAt string
	TotalScore  int
	MaxScore    int
	Answers     []slipAnswer
}

func buildResultSlip(submission *models.Submission, maxScore int) resultSlip {
	slip := resultSlip{
		SubmittedAt: submission.SubmittedAt.Format("January 2, 2006 15:04"),
		TotalScore:  submission.TotalScore,
		MaxScore:    maxScore,
	}
	if submission.Exam != nil {
		slip.ExamTitle = submission.Exam.Title
		if submission.Exam.Course != nil {
			slip.CourseName = submission.Exam.Course.Name
		}
	}
	if submission.Student != nil {
		slip.StudentName = submission.Student.Name
		if submission.Student.StudentNumber != nil {
			slip.StudentID = *submission.Student.StudentNumber
		}
	}

	for _, a := range submission.Answers {
		row := slipAnswer{Selected: "Not answered"}
		if a.Question != nil {
			row.Question = a.Question.QuestionText
			row.Marks = a.Question.Marks
		}
		if a.SelectedOption != nil {
			row.Selected = a.SelectedOption.OptionText
			row.Correct = a.SelectedOption.IsCorrect
			if row.Correct {
				row.Awarded = row.Marks
			}
		}
		slip.Answers = append(slip.Answers, row)
	}
	return slip
}

// RenderResultSlipHTML fills the result slip template for a released
// submission loaded with its exam, student and answers.
func RenderResultSlipHTML(submission *models.Submission, maxScore int) (string, error) {
	var out bytes.Buffer
	if err := resultSlipTemplate.Execute(&out, buildResultSlip(submission, maxScore)); err != nil {
		return "", errors.Wrap(err, "render result slip")
	}
	return out.String(), nil
}

// GenerateResultSlipPDF prints the rendered slip with headless Chrome.
func GenerateResultSlipPDF(ctx context.Context, submission *models.Submission, maxScore int) ([]byte, error) {
	htmlContent, err := RenderResultSlipHTML(submission, maxScore)
	if err != nil {
		return nil, err
	}
	return generatePDFFromHTML(ctx, htmlContent)
}

func generatePDFFromHTML(parent context.Context, htmlContent string) ([]byte, error) {
	ctx, cancel := chromedp.NewContext(parent)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, pdfRenderTimeout)
	defer cancelTimeout()

	var pdfBuffer []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, htmlContent).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			pdf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return err
			}
			pdfBuffer = pdf
			return nil
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "print result slip")
	}
	return pdfBuffer, nil
}

package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arcrm/engage/internal/model"
	"github.com/arcrm/engage/pkg/logger"
)

const defaultTimeout = 20 * time.Second

// Analyzer wraps a Completer with the two analysis calls the service
// layer needs. Provider failures and malformed responses never escape
// this package: every call returns a usable result, falling back to a
// fixed generic object when the provider cannot be trusted.
type Analyzer struct {
	completer Completer
	timeout   time.Duration
}

func NewAnalyzer(completer Completer, timeout time.Duration) *Analyzer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Analyzer{completer: completer, timeout: timeout}
}

// complaintAnalysisPayload mirrors the field names the prompt asks for.
// The provider response is untyped input; it is validated before any
// field reaches a model struct.
type complaintAnalysisPayload struct {
	RootCause          string   `json:"rootCause"`
	CustomerSentiment  string   `json:"customerSentiment"`
	SuggestedSolutions []string `json:"suggestedSolutions"`
}

// AnalyzeComplaint asks the provider for a structured read of the
// complaint text. Returns the fallback analysis and ok=false when the
// provider errors, times out, or returns an unusable shape.
func (a *Analyzer) AnalyzeComplaint(ctx context.Context, details, contactName string) (*model.ComplaintAnalysis, bool) {
	prompt := fmt.Sprintf(`حلل الشكوى: "%s". أرجع JSON: rootCause, customerSentiment, suggestedSolutions (array).`, details)
	if contactName != "" {
		prompt = "العميل: " + contactName + "\n" + prompt
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.completer.Complete(ctx, prompt, true)
	if err != nil {
		logger.Warn("complaint analysis call failed, using fallback", "error", err)
		return FallbackAnalysis(), false
	}

	var payload complaintAnalysisPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		logger.Warn("complaint analysis returned malformed JSON, using fallback", "error", err)
		return FallbackAnalysis(), false
	}
	if payload.RootCause == "" || payload.CustomerSentiment == "" || len(payload.SuggestedSolutions) == 0 {
		logger.Warn("complaint analysis missing required fields, using fallback")
		return FallbackAnalysis(), false
	}

	return &model.ComplaintAnalysis{
		RootCause:          payload.RootCause,
		CustomerSentiment:  payload.CustomerSentiment,
		SuggestedSolutions: payload.SuggestedSolutions,
	}, true
}

type evaluationStudyPayload struct {
	Sentiment         string   `json:"sentiment"`
	Summary           string   `json:"summary"`
	Deficiencies      []string `json:"deficiencies"`
	RootCauses        []string `json:"rootCauses"`
	ProposedSolutions []string `json:"proposedSolutions"`
	ActionPlan        string   `json:"actionPlan"`
	ImpactLevel       string   `json:"impactLevel"`
}

// StudyEvaluation runs the deep quality study for a rating. Same
// degradation contract as AnalyzeComplaint.
func (a *Analyzer) StudyEvaluation(ctx context.Context, ev *model.Evaluation) (*model.EvaluationStudy, bool) {
	comment := ev.Comment
	if comment == "" {
		comment = "لا يوجد تعليق نصي"
	}
	prompt := fmt.Sprintf(`بصفتك خبير جودة وتجربة عملاء (CX Expert)، قم بإجراء "دراسة حالة" متكاملة ومعمقة للتقييم التالي:
العميل: %s
التقييم: %d/5
التعليق: "%s"

المطلوب تحليل إداري احترافي بصيغة JSON حصراً بالحقول التالية:
1. sentiment: نبرة العميل بدقة.
2. summary: ملخص الدراسة.
3. deficiencies: مصفوفة بجميع أوجه القصور (Deficiencies) المستخلصة.
4. rootCauses: الأسباب الجذرية (Root Causes) لهذا القصور.
5. proposedSolutions: حلول مبتكرة وعملية مقترحة.
6. actionPlan: خطة عمل (Action Plan) فورية للمدير.
7. impactLevel: مستوى التأثير على سمعة العلامة التجارية (LOW, MEDIUM, HIGH, CRITICAL).

تحدث باللغة العربية المهنية.`, ev.ContactName, ev.Rating, comment)

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	raw, err := a.completer.Complete(ctx, prompt, true)
	if err != nil {
		logger.Warn("evaluation study call failed, using fallback", "error", err)
		return FallbackStudy(), false
	}

	var payload evaluationStudyPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		logger.Warn("evaluation study returned malformed JSON, using fallback", "error", err)
		return FallbackStudy(), false
	}
	if payload.Sentiment == "" || payload.Summary == "" || payload.ActionPlan == "" ||
		len(payload.Deficiencies) == 0 || len(payload.RootCauses) == 0 || len(payload.ProposedSolutions) == 0 {
		logger.Warn("evaluation study missing required fields, using fallback")
		return FallbackStudy(), false
	}

	return &model.EvaluationStudy{
		Sentiment:         payload.Sentiment,
		Summary:           payload.Summary,
		Deficiencies:      payload.Deficiencies,
		RootCauses:        payload.RootCauses,
		ProposedSolutions: payload.ProposedSolutions,
		ActionPlan:        payload.ActionPlan,
		ImpactLevel:       normalizeImpact(payload.ImpactLevel),
	}, true
}

// FallbackAnalysis is stored when enrichment cannot produce a trusted
// result. SuggestedSolutions must stay non-empty; downstream templates
// read it without nil checks.
func FallbackAnalysis() *model.ComplaintAnalysis {
	return &model.ComplaintAnalysis{
		RootCause:          "تعذر التحليل الآلي حالياً، تتطلب الشكوى مراجعة يدوية.",
		CustomerSentiment:  "غير محدد",
		SuggestedSolutions: []string{"التواصل المباشر مع العميل", "تصعيد الشكوى للمشرف المختص"},
	}
}

// FallbackStudy mirrors the placeholder study the dashboard shows when
// the provider is unreachable.
func FallbackStudy() *model.EvaluationStudy {
	return &model.EvaluationStudy{
		Sentiment:         "محايد",
		Summary:           "دراسة تقريبية لعدم توفر بيانات كافية حالياً.",
		Deficiencies:      []string{"تأخر استجابة محتمل", "ضعف في التواصل المبدئي"},
		RootCauses:        []string{"ضغط تشغيلي عالي", "نقص الكادر في ساعات الذروة"},
		ProposedSolutions: []string{"زيادة عدد الموظفين في الفترة الصباحية"},
		ActionPlan:        "إرسال اعتذار للعميل ومتابعة المحادثة الأصلية.",
		ImpactLevel:       model.ImpactMedium,
	}
}

func normalizeImpact(s string) model.ImpactLevel {
	switch model.ImpactLevel(strings.ToUpper(strings.TrimSpace(s))) {
	case model.ImpactLow:
		return model.ImpactLow
	case model.ImpactHigh:
		return model.ImpactHigh
	case model.ImpactCritical:
		return model.ImpactCritical
	default:
		return model.ImpactMedium
	}
}

// stripFences removes a markdown code fence some providers wrap JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

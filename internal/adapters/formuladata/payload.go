package formuladata

import (
	"github.com/We-are-Humans-Corp/recommendation-service/internal/domain/formula"
)

// Payloads mirror the provider's JSON. Pointer fields tell a missing or null
// field apart from a zero value; validator rejects the former.

type aScorePayload struct {
	FJ                    *float64 `json:"F_j" validate:"required"`
	FSmallJ               *float64 `json:"F_small_j" validate:"required"`
	IJ                    *float64 `json:"I_j" validate:"required"`
	ISmallJ               *float64 `json:"I_small_j" validate:"required"`
	KaT0                  *float64 `json:"Ka_t0" validate:"required"`
	VJ                    *float64 `json:"V_j" validate:"required"`
	VSmallJ               *float64 `json:"V_small_j" validate:"required"`
	C4                    *float64 `json:"c4" validate:"required"`
	C5                    *float64 `json:"c5" validate:"required"`
	C6                    *float64 `json:"c6" validate:"required"`
	C7                    *float64 `json:"c7" validate:"required"`
	C8                    *float64 `json:"c8" validate:"required"`
	C9                    *float64 `json:"c9" validate:"required"`
	FTTj                  *float64 `json:"f_t_tj_result" validate:"required"`
	KJ                    *float64 `json:"k_j" validate:"required"`
	ImpressionIters       *int     `json:"impression_sum_iterations" validate:"required,gte=0"`
	FullViewIters         *int     `json:"full_view_sum_iterations" validate:"required,gte=0"`
	UniqueFullViewIters   *int     `json:"unique_full_view_sum_iterations" validate:"required,gte=0"`
	UniqueImpressionIters *int     `json:"unique_impression_sum_iterations" validate:"required,gte=0"`
	UniqueViewIters       *int     `json:"unique_view_sum_iterations" validate:"required,gte=0"`
	ViewIters             *int     `json:"view_sum_iterations" validate:"required,gte=0"`
}

func (p *aScorePayload) inputs() formula.AScoreInputs {
	return formula.AScoreInputs{
		UniqueImpression: formula.EventTerm{Iterations: *p.UniqueImpressionIters, Value: *p.IJ, Weight: *p.C4},
		UniqueView:       formula.EventTerm{Iterations: *p.UniqueViewIters, Value: *p.VJ, Weight: *p.C5},
		UniqueFullView:   formula.EventTerm{Iterations: *p.UniqueFullViewIters, Value: *p.FJ, Weight: *p.C6},
		Impression:       formula.EventTerm{Iterations: *p.ImpressionIters, Value: *p.ISmallJ, Weight: *p.C7},
		View:             formula.EventTerm{Iterations: *p.ViewIters, Value: *p.VSmallJ, Weight: *p.C8},
		FullView:         formula.EventTerm{Iterations: *p.FullViewIters, Value: *p.FSmallJ, Weight: *p.C9},
		KJ:               *p.KJ,
		Decay:            *p.FTTj,
	}
}

type rScorePayload struct {
	C10              *float64 `json:"c10" validate:"required"`
	C11              *float64 `json:"c11" validate:"required"`
	C12              *float64 `json:"c12" validate:"required"`
	C13              *float64 `json:"c13" validate:"required"`
	C14              *float64 `json:"c14" validate:"required"`
	RJ               *float64 `json:"r_j" validate:"required"`
	LJ               *float64 `json:"l_j" validate:"required"`
	MJ               *float64 `json:"m_j" validate:"required"`
	SJ               *float64 `json:"s_j" validate:"required"`
	PJ               *float64 `json:"p_j" validate:"required"`
	KJ               *float64 `json:"k_j" validate:"required"`
	LikeIters        *int     `json:"like_function_iterations_num" validate:"required,gte=0"`
	ReplyIters       *int     `json:"reply_function_iterations_num" validate:"required,gte=0"`
	MasterClassIters *int     `json:"master_class_iterations_num" validate:"required,gte=0"`
	CommentIters     *int     `json:"comment_function_iterations_num" validate:"required,gte=0"`
	PaymentIters     *int     `json:"payment_function_iterations_num" validate:"required,gte=0"`
	GTTj             *float64 `json:"g_t_tj_result" validate:"required"`
	YTTj             *float64 `json:"y_t_tj_result" validate:"required"`
}

func (p *rScorePayload) inputs() formula.RScoreInputs {
	return formula.RScoreInputs{
		Reply:       formula.EventTerm{Iterations: *p.ReplyIters, Value: *p.RJ, Weight: *p.C10},
		Like:        formula.EventTerm{Iterations: *p.LikeIters, Value: *p.LJ, Weight: *p.C11},
		MasterClass: formula.EventTerm{Iterations: *p.MasterClassIters, Value: *p.MJ, Weight: *p.C12},
		Comment:     formula.EventTerm{Iterations: *p.CommentIters, Value: *p.SJ, Weight: *p.C13},
		Payment:     formula.EventTerm{Iterations: *p.PaymentIters, Value: *p.PJ, Weight: *p.C14},
		KJ:          *p.KJ,
		G:           *p.GTTj,
		Y:           *p.YTTj,
	}
}

type postRatingPayload struct {
	C1   *float64 `json:"c1" validate:"required"`
	C2   *float64 `json:"c2" validate:"required"`
	C3   *float64 `json:"c3" validate:"required"`
	KJ   *float64 `json:"k_j" validate:"required"`
	KaT0 *float64 `json:"Ka_t0" validate:"required"`
}

func (p *postRatingPayload) inputs() formula.PostRatingInputs {
	return formula.PostRatingInputs{C1: *p.C1, C2: *p.C2, C3: *p.C3, KJ: *p.KJ, KaT0: *p.KaT0}
}

type karmaPayload struct {
	C15        *float64 `json:"c15" validate:"required"`
	PA         *float64 `json:"p_a" validate:"required"`
	NSub       *float64 `json:"n_sub" validate:"required"`
	CReg       *float64 `json:"c_reg" validate:"required"`
	Alpha      *float64 `json:"alpha" validate:"required"`
	Iterations *int     `json:"post_rating_sum_iterations" validate:"required,gte=0"`
	HTTr       *float64 `json:"h_t_tr_result" validate:"required"`
	ZN         *float64 `json:"z_n_result" validate:"required"`
}

func (p *karmaPayload) inputs() formula.KarmaInputs {
	return formula.KarmaInputs{
		C15:                     *p.C15,
		PA:                      *p.PA,
		NSub:                    *p.NSub,
		ZN:                      *p.ZN,
		H:                       *p.HTTr,
		CReg:                    *p.CReg,
		Alpha:                   *p.Alpha,
		PostRatingSumIterations: *p.Iterations,
	}
}

// c16 is left to the KarmaLevel stage, which rejects a missing value as an
// invalid argument.
type karmaLevelPayload struct {
	C16 *float64 `json:"c16"`
}

func (p *karmaLevelPayload) inputs() formula.KarmaLevelInputs {
	return formula.KarmaLevelInputs{C16: p.C16}
}

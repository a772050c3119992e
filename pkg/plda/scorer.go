package plda

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const log2Pi = 1.8378770664093454835606594728112352797227949472755668

// Scorer evaluates two-covariance PLDA log-likelihood ratios. It holds only
// read-only state derived from a Model, so it is safe to call concurrently
// from multiple goroutines.
type Scorer struct {
	dim  int
	mean []float64

	// transform maps a centered embedding into the fully diagonalized PLDA
	// space, where the within-class covariance is the identity and the
	// between-class covariance is diag(psi).
	transform *mat.Dense
	psi       []float64

	// Cached "marginal" (without-class) terms: these depend only on psi,
	// not on any particular embedding, so they're computed once.
	invVarWithout []float64
	logdetWithout float64
}

// NewScorer diagonalizes model's within- and between-class covariances via
// a Cholesky whitening of Sigma followed by an eigendecomposition of the
// whitened speaker-subspace covariance F*F^T, caching the result for
// repeated Score/CohortScores calls.
func NewScorer(model *Model) (*Scorer, error) {
	d := model.Dim()

	sigmaSym := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			sigmaSym.SetSym(i, j, model.Sigma[i][j])
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(sigmaSym); !ok {
		return nil, fmt.Errorf("plda: within-class covariance Sigma is not positive definite")
	}
	l := chol.LTo(nil)

	var lDense mat.Dense
	lDense.CloneFrom(l)
	var lInv mat.Dense
	if err := lInv.Inverse(&lDense); err != nil {
		return nil, fmt.Errorf("plda: invert Cholesky factor of Sigma: %w", err)
	}

	fMat := denseFromRows(model.F)
	var fWhite mat.Dense
	fWhite.Mul(&lInv, fMat)

	var between mat.Dense
	between.Mul(&fWhite, fWhite.T())
	betweenSym := mat.NewSymDense(d, nil)
	for i := 0; i < d; i++ {
		for j := i; j < d; j++ {
			betweenSym.SetSym(i, j, between.At(i, j))
		}
	}

	var eigen mat.EigenSym
	if ok := eigen.Factorize(betweenSym, true); !ok {
		return nil, fmt.Errorf("plda: eigendecomposition of between-class covariance failed")
	}
	psi := eigen.Values(nil)

	// The model's scaling_factor tempers the between-class eigenvalues
	// before they feed the two-covariance recursion in llr, matching
	// speechbrain's fast_PLDA_scoring(scaling_factor=...) knob.
	scale := model.scalingFactor()
	for i := range psi {
		psi[i] *= scale
	}

	var q mat.Dense
	q.EigenvectorsSym(&eigen)

	var transform mat.Dense
	transform.Mul(q.T(), &lInv)

	invVarWithout := make([]float64, d)
	logdetWithout := 0.0
	for i, p := range psi {
		v := 1 + p
		invVarWithout[i] = 1 / v
		logdetWithout += math.Log(v)
	}

	mean := make([]float64, d)
	copy(mean, model.Mean)

	return &Scorer{
		dim:           d,
		mean:          mean,
		transform:     &transform,
		psi:           psi,
		invVarWithout: invVarWithout,
		logdetWithout: logdetWithout,
	}, nil
}

// Dim returns the embedding dimensionality the scorer operates on.
func (s *Scorer) Dim() int { return s.dim }

// transformOne projects a single centered embedding through s.transform.
func (s *Scorer) transformOne(e []float32) []float64 {
	centered := mat.NewVecDense(s.dim, nil)
	for i := 0; i < s.dim; i++ {
		centered.SetVec(i, float64(e[i])-s.mean[i])
	}
	var out mat.VecDense
	out.MulVec(s.transform, centered)
	u := make([]float64, s.dim)
	for i := 0; i < s.dim; i++ {
		u[i] = out.AtVec(i)
	}
	return u
}

// Score computes the raw PLDA log-likelihood ratio between an enrollment
// embedding and a test embedding, under the hypothesis that they come from
// the same speaker versus independently drawn speakers.
func (s *Scorer) Score(enroll, test []float32) (float64, error) {
	if err := s.checkDim(enroll, "enroll"); err != nil {
		return 0, err
	}
	if err := s.checkDim(test, "test"); err != nil {
		return 0, err
	}

	uEnroll := s.transformOne(enroll)
	uTest := s.transformOne(test)
	return s.llr(uEnroll, uTest), nil
}

// CohortScores scores ref against every vector in cohort in a single pass.
// The expensive transform step (projecting all |cohort| embeddings through
// the d x d PLDA transform) is done as one matrix multiply rather than
// |cohort| independent matrix-vector multiplies, so the dominant cost is
// O(d^2 * k) instead of O(d^2) repeated k times with per-call overhead.
//
// CohortScores(ref, []Embedding{c})[0] is algorithmically identical to
// Score(ref, c); both evaluate the same llr on the same transformed
// vectors.
func (s *Scorer) CohortScores(ref []float32, cohort [][]float32) ([]float64, error) {
	if err := s.checkDim(ref, "ref"); err != nil {
		return nil, err
	}
	if len(cohort) == 0 {
		return nil, nil
	}
	for i, c := range cohort {
		if len(c) != s.dim {
			return nil, fmt.Errorf("plda: cohort[%d] has dimension %d, want %d", i, len(c), s.dim)
		}
	}

	uRef := s.transformOne(ref)

	k := len(cohort)
	centered := mat.NewDense(k, s.dim, nil)
	for i, c := range cohort {
		for j := 0; j < s.dim; j++ {
			centered.Set(i, j, float64(c[j])-s.mean[j])
		}
	}

	var transformed mat.Dense
	transformed.Mul(centered, s.transform.T())

	scores := make([]float64, k)
	row := make([]float64, s.dim)
	for i := 0; i < k; i++ {
		mat.Row(row, i, &transformed)
		scores[i] = s.llr(uRef, row)
	}
	return scores, nil
}

// llr evaluates the Kaldi-style two-covariance PLDA log-likelihood ratio
// for a single enrollment utterance against a single test vector, both
// already in the diagonalized space.
func (s *Scorer) llr(uEnroll, uTest []float64) float64 {
	var sumGiven, logdetGiven float64
	for i, p := range s.psi {
		meanGiven := p / (p + 1) * uEnroll[i]
		varGiven := 1 + p/(p+1)
		logdetGiven += math.Log(varGiven)
		d := uTest[i] - meanGiven
		sumGiven += d * d / varGiven
	}
	loglikeGiven := -0.5 * (logdetGiven + float64(s.dim)*log2Pi + sumGiven)

	var sumWithout float64
	for i := range s.psi {
		sumWithout += uTest[i] * uTest[i] * s.invVarWithout[i]
	}
	loglikeWithout := -0.5 * (s.logdetWithout + float64(s.dim)*log2Pi + sumWithout)

	return loglikeGiven - loglikeWithout
}

func (s *Scorer) checkDim(e []float32, name string) error {
	if len(e) != s.dim {
		return fmt.Errorf("plda: %s embedding has dimension %d, want %d", name, len(e), s.dim)
	}
	return nil
}

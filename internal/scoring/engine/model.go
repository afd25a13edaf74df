package engine

import (
	"scorepass/internal/scoring/models"
	"scorepass/pkg/enc"
)

// Score bounds and model weights. Weights are plaintext constants; they meet
// the features only inside encrypted operations.
const (
	scoreFloor   = 300
	scoreCeiling = 850

	incomeWeightNum = 15 // income * 15 / 10000 = income * 0.0015
	incomeWeightDen = 10000
	employmentRate  = 8
	debtWeightNum   = 25 // debt * 25 / 100000 = debt * 0.00025
	debtWeightDen   = 100000
	dtiRate         = 6
	utilizationRate = 2
	historyBase     = 300
	historyDivisor  = 2
	ageDivisor      = 3
	inquiryRate     = 15

	matureAccountMonths  = 60
	matureAccountBonus   = 25
	stableIncomeFloor    = 5000
	stableTenureMonths   = 24
	stabilityBonus       = 50
	healthyDTICeiling    = 20
	healthyUtilCeiling   = 30
	healthyProfileBonus  = 75
	riskyInquiryFloor    = 5
	riskyDTIFloor        = 43
	riskPenalty          = 100
	riskPenaltyScoreGate = 100
)

// ApplyModel evaluates the linear-plus-conditional model over encrypted
// features and returns an encrypted score clamped to [300, 850] and the
// configured credit ceiling.
//
// Every conditional uses the compare-then-select idiom: compute an encrypted
// boolean, then Select between the two branch values. No intermediate value
// is ever decrypted, so the arithmetic never leaks which branch was taken.
func ApplyModel(backend enc.Backend, features models.CreditFeatures, params *models.ModelParameters) enc.Cipher {
	b := backend
	zero := b.Encrypt(0)

	score := params.BaseScore

	// Linear bonuses.
	incomeBonus := b.Div(b.Mul(features.Income, b.Encrypt(incomeWeightNum)), b.Encrypt(incomeWeightDen))
	score = b.Add(score, incomeBonus)
	score = b.Add(score, b.Mul(features.Employment, b.Encrypt(employmentRate)))

	// Linear penalties. Each penalty is affordable only if it is smaller than
	// the running score; otherwise nothing is subtracted. The comparison is
	// against the running score, not zero, which a large early bonus can mask.
	debtPenalty := b.Div(b.Mul(features.Debt, b.Encrypt(debtWeightNum)), b.Encrypt(debtWeightDen))
	score = subtractAffordable(b, score, debtPenalty, zero)
	score = subtractAffordable(b, score, b.Mul(features.DTI, b.Encrypt(dtiRate)), zero)
	score = subtractAffordable(b, score, b.Mul(features.Utilization, b.Encrypt(utilizationRate)), zero)

	// History and account age bonuses.
	historyBonus := b.Div(b.Sub(features.History, b.Encrypt(historyBase)), b.Encrypt(historyDivisor))
	score = b.Add(score, historyBonus)
	score = b.Add(score, b.Div(features.AgeMonths, b.Encrypt(ageDivisor)))

	score = subtractAffordable(b, score, b.Mul(features.Inquiries, b.Encrypt(inquiryRate)), zero)

	// Conditional adjustments, all branch-free.
	mature := b.Gt(features.AgeMonths, b.Encrypt(matureAccountMonths))
	score = b.Add(score, b.Select(mature, b.Encrypt(matureAccountBonus), zero))

	stable := b.Mul(
		b.Gt(features.Income, b.Encrypt(stableIncomeFloor)),
		b.Gt(features.Employment, b.Encrypt(stableTenureMonths)),
	)
	score = b.Add(score, b.Select(stable, b.Encrypt(stabilityBonus), zero))

	healthy := b.Mul(
		b.Lt(features.DTI, b.Encrypt(healthyDTICeiling)),
		b.Lt(features.Utilization, b.Encrypt(healthyUtilCeiling)),
	)
	score = b.Add(score, b.Select(healthy, b.Encrypt(healthyProfileBonus), zero))

	// Risk penalty: (inquiries > 5 OR dti > 43) AND score > 100. OR over
	// encrypted booleans is sum-then-greater-than-zero.
	risky := b.Gt(
		b.Add(
			b.Gt(features.Inquiries, b.Encrypt(riskyInquiryFloor)),
			b.Gt(features.DTI, b.Encrypt(riskyDTIFloor)),
		),
		zero,
	)
	applicable := b.Mul(risky, b.Gt(score, b.Encrypt(riskPenaltyScoreGate)))
	score = subtractAffordable(b, score, b.Select(applicable, b.Encrypt(riskPenalty), zero), zero)

	// Risk multiplier in percent; 100 is identity.
	score = b.Div(b.Mul(score, params.RiskMultiplier), b.Encrypt(100))

	// Clamp to [floor, ceiling], then to the configured credit ceiling.
	floor := b.Encrypt(scoreFloor)
	ceiling := b.Encrypt(scoreCeiling)
	score = b.Select(b.Lt(score, floor), floor, score)
	score = b.Select(b.Gt(score, ceiling), ceiling, score)
	score = b.Select(b.Gt(score, params.CreditCeiling), params.CreditCeiling, score)

	return score
}

// subtractAffordable subtracts penalty from score only when the penalty is
// strictly smaller than the running score.
func subtractAffordable(b enc.Backend, score, penalty, zero enc.Cipher) enc.Cipher {
	canSubtract := b.Lt(penalty, score)
	amount := b.Select(canSubtract, penalty, zero)
	return b.Sub(score, amount)
}

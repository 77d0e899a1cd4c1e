package linear

import (
	"math"
	"math/rand"
	"sort"
)

type Options struct {
	Epochs       int
	LearningRate float64
	L2           float64
	Holdout      float64
	Seed         int64
}

type Weights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

type Metrics struct {
	Loss      float64 `json:"loss"`
	Accuracy  float64 `json:"accuracy"`
	AUC       float64 `json:"auc"`
	TrainRows int     `json:"train_rows"`
	EvalRows  int     `json:"eval_rows"`
}

// TrainLogistic fits a logistic regression with full-batch gradient
// descent. A seeded shuffle carves off the holdout fraction for
// evaluation, so identical inputs and options reproduce identical
// weights and metrics.
func TrainLogistic(samples [][]float64, labels []float64, opts Options) (Weights, Metrics) {
	if opts.Epochs <= 0 {
		opts.Epochs = 400
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = 0.1
	}

	n := len(samples)
	if n == 0 {
		return Weights{}, Metrics{}
	}
	featureCount := len(samples[0])

	rng := rand.New(rand.NewSource(opts.Seed))
	perm := rng.Perm(n)
	trainN := n
	if opts.Holdout > 0 && opts.Holdout < 1 {
		trainN = n - int(math.Round(float64(n)*opts.Holdout))
		if trainN < 1 {
			trainN = 1
		}
	}
	trainIdx := perm[:trainN]
	evalIdx := perm[trainN:]
	if len(evalIdx) == 0 {
		evalIdx = trainIdx
	}

	weights := make([]float64, featureCount)
	var bias float64

	for epoch := 0; epoch < opts.Epochs; epoch++ {
		grad := make([]float64, featureCount)
		var biasGrad float64
		for _, i := range trainIdx {
			prediction := sigmoid(dot(weights, samples[i]) + bias)
			delta := prediction - labels[i]
			for j := 0; j < featureCount; j++ {
				grad[j] += delta * samples[i][j]
			}
			biasGrad += delta
		}
		scale := opts.LearningRate / float64(len(trainIdx))
		for j := 0; j < featureCount; j++ {
			weights[j] -= scale*grad[j] + opts.LearningRate*opts.L2*weights[j]
		}
		bias -= scale * biasGrad
	}

	loss, accuracy, auc := evaluate(weights, bias, samples, labels, evalIdx)
	return Weights{Bias: bias, Coefficients: weights}, Metrics{
		Loss:      loss,
		Accuracy:  accuracy,
		AUC:       auc,
		TrainRows: len(trainIdx),
		EvalRows:  len(evalIdx),
	}
}

func Predict(weights Weights, sample []float64) float64 {
	return sigmoid(dot(weights.Coefficients, sample) + weights.Bias)
}

func dot(weights []float64, sample []float64) float64 {
	var sum float64
	for i := 0; i < len(weights); i++ {
		sum += weights[i] * sample[i]
	}
	return sum
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func evaluate(weights []float64, bias float64, samples [][]float64, labels []float64, idx []int) (float64, float64, float64) {
	var loss float64
	var correct int
	scores := make([]float64, 0, len(idx))
	truth := make([]float64, 0, len(idx))
	for _, i := range idx {
		prediction := sigmoid(dot(weights, samples[i]) + bias)
		loss += -labels[i]*math.Log(prediction+1e-9) - (1-labels[i])*math.Log(1-prediction+1e-9)
		if (prediction >= 0.5 && labels[i] == 1) || (prediction < 0.5 && labels[i] == 0) {
			correct++
		}
		scores = append(scores, prediction)
		truth = append(truth, labels[i])
	}
	loss /= float64(len(idx))
	accuracy := float64(correct) / float64(len(idx))
	return loss, accuracy, rankAUC(scores, truth)
}

// rankAUC is the Mann-Whitney formulation with tied scores sharing
// their average rank. Degenerate single-class sets score 0.5.
func rankAUC(scores, labels []float64) float64 {
	type pair struct {
		score float64
		label float64
	}
	pairs := make([]pair, len(scores))
	var positives, negatives int
	for i := range scores {
		pairs[i] = pair{score: scores[i], label: labels[i]}
		if labels[i] == 1 {
			positives++
		} else {
			negatives++
		}
	}
	if positives == 0 || negatives == 0 {
		return 0.5
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].score < pairs[j].score })

	var rankSum float64
	i := 0
	for i < len(pairs) {
		j := i
		for j < len(pairs) && pairs[j].score == pairs[i].score {
			j++
		}
		avgRank := float64(i+j+1) / 2 // ranks are 1-based
		for k := i; k < j; k++ {
			if pairs[k].label == 1 {
				rankSum += avgRank
			}
		}
		i = j
	}

	u := rankSum - float64(positives)*float64(positives+1)/2
	return u / (float64(positives) * float64(negatives))
}

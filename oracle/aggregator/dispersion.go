package aggregator

import (
	"cosmossdk.io/math"

	"github.com/kiichain/oracle-price-feeder/oracle/types"
)

// standardDeviation returns the population standard deviation of the
// scaled prices in sources, or zero if fewer than three survivors remain
// (a sample that small makes the statistic meaningless rather than
// merely noisy).
func standardDeviation(sources []types.ValidatedPrice) int64 {
	if len(sources) < 3 {
		return 0
	}

	sum := math.LegacyZeroDec()
	prices := make([]math.LegacyDec, len(sources))
	for i, v := range sources {
		d := math.LegacyNewDec(v.Price)
		prices[i] = d
		sum = sum.Add(d)
	}

	numPrices := int64(len(prices))
	mean := sum.QuoInt64(numPrices)

	varianceSum := math.LegacyZeroDec()
	for _, p := range prices {
		deviation := p.Sub(mean)
		varianceSum = varianceSum.Add(deviation.Mul(deviation))
	}
	variance := varianceSum.QuoInt64(numPrices)

	stdDev, err := variance.ApproxSqrt()
	if err != nil {
		return 0
	}
	return stdDev.TruncateInt64()
}

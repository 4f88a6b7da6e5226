package mint

import (
	"context"
	"fmt"

	"github.com/egaotan/solana-token2022/token2022"
)

type RentSource interface {
	GetMinimumBalanceForRentExemption(ctx context.Context, size uint64) (uint64, error)
}

// SizeReport splits the mint footprint into the bytes allocated up front and
// the bytes the metadata initializer reallocates later. Rent covers Total.
type SizeReport struct {
	MintSpace     int
	MetadataSpace int
	Total         int
}

type Calculator struct {
	rent RentSource
}

func NewCalculator(rent RentSource) *Calculator {
	return &Calculator{
		rent: rent,
	}
}

// Size counts every extension kind in the blueprint whether or not it has an
// initializer.
func (c *Calculator) Size(bp *Blueprint) (SizeReport, error) {
	mintSpace, err := token2022.MintLen(bp.ExtensionTypes())
	if err != nil {
		return SizeReport{}, err
	}
	report := SizeReport{MintSpace: mintSpace}
	if bp.Metadata != nil {
		report.MetadataSpace, err = bp.Metadata.Space()
		if err != nil {
			return SizeReport{}, err
		}
	}
	report.Total = report.MintSpace + report.MetadataSpace
	return report, nil
}

func (c *Calculator) Rent(ctx context.Context, bp *Blueprint) (SizeReport, uint64, error) {
	report, err := c.Size(bp)
	if err != nil {
		return SizeReport{}, 0, err
	}
	lamports, err := c.rent.GetMinimumBalanceForRentExemption(ctx, uint64(report.Total))
	if err != nil {
		return report, 0, fmt.Errorf("rent for %d bytes: %w", report.Total, err)
	}
	return report, lamports, nil
}

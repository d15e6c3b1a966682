package api

import (
	"errors"

	"courieropt/internal/model"
)

func validateOptimizeRequest(req *model.OptimizeRequest) error {
	if len(req.Jobs) == 0 {
		return errors.New("No jobs provided for optimization")
	}
	if req.NumDriversPerDay <= 0 {
		return errors.New("num_drivers_per_day must be positive")
	}
	return nil
}

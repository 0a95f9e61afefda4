package api

import (
	"fmt"

	"github.com/djlord-it/jobadmin/internal/domain"
	"github.com/djlord-it/jobadmin/internal/registry"
)

func (h *Handler) validateJob(req JobRequest) error {
	if req.GroupID <= 0 {
		return fmt.Errorf("group_id is required")
	}
	if req.Description == "" {
		return fmt.Errorf("description is required")
	}
	if req.Handler == "" && req.GlueSource == "" {
		return fmt.Errorf("handler is required")
	}
	if req.ScheduleType == "" {
		return fmt.Errorf("schedule_type is required")
	}

	scheduleType := domain.ScheduleType(req.ScheduleType)
	if err := h.calc.Validate(scheduleType, req.ScheduleConf); err != nil {
		return fmt.Errorf("invalid schedule: %w", err)
	}

	if req.TimeoutSec < 0 {
		return fmt.Errorf("timeout_seconds must be non-negative")
	}
	if req.FailRetryCount < 0 {
		return fmt.Errorf("fail_retry_count must be non-negative")
	}
	return nil
}

func validateGroup(req GroupRequest) error {
	if req.Name == "" {
		return fmt.Errorf("name is required")
	}
	if req.Title == "" {
		return fmt.Errorf("title is required")
	}

	switch domain.AddressMode(req.AddressMode) {
	case domain.AddressModeAuto:
	case domain.AddressModeManual:
		if len(registry.ParseAddressList(req.AddressList)) == 0 {
			return fmt.Errorf("address_list is required when address_mode is manual")
		}
	default:
		return fmt.Errorf("address_mode must be 0 (auto) or 1 (manual)")
	}
	return nil
}

func validateRegistry(req RegistryRequest) error {
	if req.RegistryGroup == "" {
		return fmt.Errorf("registryGroup is required")
	}
	if req.RegistryKey == "" {
		return fmt.Errorf("registryKey is required")
	}
	if registry.NormalizeAddress(req.RegistryValue) == "" {
		return fmt.Errorf("registryValue is required")
	}
	return nil
}

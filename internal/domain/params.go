package domain

import (
	"encoding/json"
	"fmt"
)

// Typed parameter payloads per action family. The scheduler core treats
// Parameters as opaque JSON; handlers decode them through DecodeParams to get
// a checked shape.

type RegistrationParams struct {
	ProfileID string `json:"profile_id"`
}

type SuspensionParams struct {
	Reason     string `json:"reason,omitempty"`
	NotifyUser bool   `json:"notify_user,omitempty"`
}

type BlockingParams struct {
	Reason string `json:"reason,omitempty"`
}

type PolicyChangeParams struct {
	PolicyID string `json:"policy_id"`
}

type DeviceRenameParams struct {
	NamePrefix string `json:"name_prefix"`
}

type ResendPasswordParams struct {
	Channel string `json:"channel,omitempty"` // "sms" or "email"
}

// DecodeParams parses raw parameters into the struct for the given task type.
// Activation tasks take no parameters and decode to nil. Unknown types are an
// error so new task types cannot silently ship without a schema here.
func DecodeParams(typ TaskType, raw json.RawMessage) (any, error) {
	decode := func(v any) (any, error) {
		if len(raw) == 0 {
			return v, nil
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return nil, fmt.Errorf("decode %s parameters: %w", typ, err)
		}
		return v, nil
	}

	switch typ {
	case BulkUserRegistration, BulkDeviceRegistration:
		return decode(&RegistrationParams{})
	case BulkActivation, SingleActivation:
		return nil, nil
	case BulkSuspension, SingleSuspension:
		return decode(&SuspensionParams{})
	case BulkBlocking, SingleBlocking:
		return decode(&BlockingParams{})
	case BulkPolicyChange, SinglePolicyChange:
		return decode(&PolicyChangeParams{})
	case BulkDeviceRename:
		return decode(&DeviceRenameParams{})
	case BulkResendPassword, SingleResendPassword:
		return decode(&ResendPasswordParams{})
	default:
		return nil, fmt.Errorf("unknown task type %q", typ)
	}
}

package dynamo

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/jacentio/storefront/record"
)

var transientCodes = map[string]bool{
	"ThrottlingException":                    true,
	"ProvisionedThroughputExceededException": true,
	"RequestLimitExceeded":                   true,
	"ServiceUnavailable":                     true,
	"InternalServerError":                    true,
	"RequestTimeout":                         true,
	"TransactionConflictException":           true,
	"TransactionInProgressException":         true,
}

// classify maps a DynamoDB error onto a record.Error.
func classify(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return record.NewError(record.SchemaMissing, op, table, err)
	}
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return record.NewError(record.Permanent, op, table, err)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if transientCodes[apiErr.ErrorCode()] || apiErr.ErrorFault() == smithy.FaultServer {
			return record.NewError(record.Transient, op, table, err)
		}
		if apiErr.ErrorFault() == smithy.FaultClient {
			return record.NewError(record.Permanent, op, table, err)
		}
	}
	return record.Classify(op, table, err)
}

// mapConditionError maps a failed write condition to sentinel and falls back
// to classify for everything else.
func (s *Store) mapConditionError(op, table string, err error, sentinel error) error {
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return record.NewError(record.Permanent, op, table, sentinel)
	}
	return classify(op, table, err)
}

// mapInsertTransactionError maps a cancelled key+entity transaction. The
// natural-key put is always item 0 and the entity put item 1.
func (s *Store) mapInsertTransactionError(table string, err error) error {
	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code == nil {
				continue
			}
			switch *reason.Code {
			case "ConditionalCheckFailed":
				if i == 0 {
					return record.NewError(record.Permanent, "insert", table, record.ErrDuplicateValue)
				}
				return record.NewError(record.Permanent, "insert", table, record.ErrAlreadyExists)
			case "TransactionConflict", "ThrottlingError", "ProvisionedThroughputExceeded":
				return record.NewError(record.Transient, "insert", table, err)
			}
		}
		return record.NewError(record.Permanent, "insert", table, err)
	}
	return classify("insert", table, err)
}

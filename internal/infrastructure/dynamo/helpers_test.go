package dynamo

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUpdateExpr_SingleField(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"otp_code": "123456"})
	require.NoError(t, err)
	assert.Equal(t, "SET #f0 = :v0", ue.Expr)
	assert.Equal(t, map[string]string{"#f0": "otp_code"}, ue.Names)
	_, ok := ue.Values[":v0"]
	assert.True(t, ok)
}

func TestBuildUpdateExpr_MultipleFields_Deterministic(t *testing.T) {
	updates := map[string]interface{}{
		"password_hash":  "h",
		"otp_expires_at": int64(1),
		"otp_code":       "123456",
	}
	ue1, err := buildUpdateExpr(updates)
	require.NoError(t, err)
	ue2, err := buildUpdateExpr(updates)
	require.NoError(t, err)

	assert.Equal(t, ue1.Expr, ue2.Expr)
	assert.Equal(t, "otp_code", ue1.Names["#f0"])
	assert.Equal(t, "otp_expires_at", ue1.Names["#f1"])
	assert.Equal(t, "password_hash", ue1.Names["#f2"])
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", ue1.Expr)
}

func TestBuildUpdateExpr_ValuesMarshalledCorrectly(t *testing.T) {
	ue, err := buildUpdateExpr(map[string]interface{}{"otp_expires_at": int64(1700000000000)})
	require.NoError(t, err)
	n, ok := ue.Values[":v0"].(*types.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "1700000000000", n.Value)
}

func TestBuildUpdateExpr_EmptyMap_ReturnsError(t *testing.T) {
	_, err := buildUpdateExpr(map[string]interface{}{})
	assert.ErrorContains(t, err, "no fields to update")
}

func TestIsTxConditionFailed(t *testing.T) {
	cancelled := &types.TransactionCanceledException{CancellationReasons: []types.CancellationReason{
		{Code: aws.String("None")},
		{Code: aws.String("ConditionalCheckFailed")},
	}}
	assert.True(t, isTxConditionFailed(cancelled))
	assert.False(t, isTxConditionFailed(&types.TransactionCanceledException{}))
	assert.False(t, isTxConditionFailed(errors.New("boom")))
}

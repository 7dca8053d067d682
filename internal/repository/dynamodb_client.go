package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"gift-concierge/internal/domain"
)

const (
	skPrefixClick      = "CLICK#"
	skPrefixConversion = "CONVERSION#"
	skMeta             = "META#"
	ttlDuration        = 90 * 24 * time.Hour // 90-day TTL
	defaultClickLimit  = 100
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// Client wraps a DynamoDB table holding per-session analytics: one item per
// click or conversion plus a META# item carrying the converted flag.
type Client struct {
	api       dynamodbAPI
	tableName string
	now       func() time.Time
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName, now: time.Now}, nil
}

func sessionPK(sessionID string) string {
	return "SESSION#" + sessionID
}

func clickSK(ts time.Time, sku string) string {
	return skPrefixClick + ts.UTC().Format(time.RFC3339Nano) + "#" + sku
}

func conversionSK(ts time.Time) string {
	return skPrefixConversion + ts.UTC().Format(time.RFC3339Nano)
}

func (c *Client) ttlValue() int64 {
	return c.now().Add(ttlDuration).Unix()
}

func (c *Client) eventTime(ts time.Time) time.Time {
	if ts.IsZero() {
		return c.now().UTC()
	}
	return ts.UTC()
}

// RecordClick stores one product click.
func (c *Client) RecordClick(ctx context.Context, ev domain.ClickEvent) error {
	if strings.TrimSpace(ev.SessionID) == "" || strings.TrimSpace(ev.Sku) == "" {
		return errors.New("repository: RecordClick: session id and sku are required")
	}
	if ev.Position < 1 {
		return fmt.Errorf("repository: RecordClick: position %d is not 1-based", ev.Position)
	}
	ts := c.eventTime(ev.OccurredAt)

	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":         &types.AttributeValueMemberS{Value: sessionPK(ev.SessionID)},
			"SK":         &types.AttributeValueMemberS{Value: clickSK(ts, ev.Sku)},
			"sessionId":  &types.AttributeValueMemberS{Value: ev.SessionID},
			"sku":        &types.AttributeValueMemberS{Value: ev.Sku},
			"name":       &types.AttributeValueMemberS{Value: ev.Name},
			"position":   &types.AttributeValueMemberN{Value: strconv.Itoa(ev.Position)},
			"occurredAt": &types.AttributeValueMemberS{Value: ts.Format(time.RFC3339Nano)},
			"ttl":        &types.AttributeValueMemberN{Value: strconv.FormatInt(c.ttlValue(), 10)},
		},
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: RecordClick: %w", err)
	}
	return nil
}

// RecordConversion writes the conversion event and flips the session's
// converted flag in one transaction.
func (c *Client) RecordConversion(ctx context.Context, ev domain.ConversionEvent) error {
	if strings.TrimSpace(ev.SessionID) == "" {
		return errors.New("repository: RecordConversion: session id is required")
	}
	ts := c.eventTime(ev.OccurredAt)
	pk := sessionPK(ev.SessionID)
	ttl := strconv.FormatInt(c.ttlValue(), 10)

	_, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item: map[string]types.AttributeValue{
						"PK":         &types.AttributeValueMemberS{Value: pk},
						"SK":         &types.AttributeValueMemberS{Value: conversionSK(ts)},
						"sessionId":  &types.AttributeValueMemberS{Value: ev.SessionID},
						"occurredAt": &types.AttributeValueMemberS{Value: ts.Format(time.RFC3339Nano)},
						"ttl":        &types.AttributeValueMemberN{Value: ttl},
					},
					ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(c.tableName),
					Item: map[string]types.AttributeValue{
						"PK":           &types.AttributeValueMemberS{Value: pk},
						"SK":           &types.AttributeValueMemberS{Value: skMeta},
						"sessionId":    &types.AttributeValueMemberS{Value: ev.SessionID},
						"converted":    &types.AttributeValueMemberBOOL{Value: true},
						"lastActivity": &types.AttributeValueMemberS{Value: ts.Format(time.RFC3339)},
						"ttl":          &types.AttributeValueMemberN{Value: ttl},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("repository: RecordConversion: %w", err)
	}
	return nil
}

// GetSessionAnalytics returns the most recent limit clicks in chronological
// order and whether the session converted.
func (c *Client) GetSessionAnalytics(ctx context.Context, sessionID string, limit int) (domain.SessionAnalytics, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.SessionAnalytics{}, errors.New("repository: GetSessionAnalytics: session id is required")
	}
	if limit <= 0 {
		limit = defaultClickLimit
	}
	pk := sessionPK(sessionID)

	out, err := c.api.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixClick},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	})
	if err != nil {
		return domain.SessionAnalytics{}, fmt.Errorf("repository: GetSessionAnalytics query: %w", err)
	}

	clicks := make([]domain.ClickEvent, 0, len(out.Items))
	for _, item := range out.Items {
		ev, err := itemToClick(item)
		if err != nil {
			return domain.SessionAnalytics{}, fmt.Errorf("repository: GetSessionAnalytics unmarshal: %w", err)
		}
		clicks = append(clicks, ev)
	}
	// Query returns newest first; callers want chronological order.
	for i, j := 0, len(clicks)-1; i < j; i, j = i+1, j-1 {
		clicks[i], clicks[j] = clicks[j], clicks[i]
	}

	meta, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: pk},
			"SK": &types.AttributeValueMemberS{Value: skMeta},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.SessionAnalytics{}, fmt.Errorf("repository: GetSessionAnalytics get meta: %w", err)
	}
	converted := false
	if meta != nil && len(meta.Item) > 0 {
		converted, err = boolAttr(meta.Item, "converted")
		if err != nil {
			return domain.SessionAnalytics{}, fmt.Errorf("repository: GetSessionAnalytics decode meta: %w", err)
		}
	}

	return domain.SessionAnalytics{SessionID: sessionID, Clicks: clicks, Converted: converted}, nil
}

func itemToClick(item map[string]types.AttributeValue) (domain.ClickEvent, error) {
	sessionID, err := strAttr(item, "sessionId")
	if err != nil {
		return domain.ClickEvent{}, err
	}
	sku, err := strAttr(item, "sku")
	if err != nil {
		return domain.ClickEvent{}, err
	}
	position, err := intAttr(item, "position")
	if err != nil {
		return domain.ClickEvent{}, err
	}
	name, _ := strAttr(item, "name") // allow empty
	var occurredAt time.Time
	if raw, err := strAttr(item, "occurredAt"); err == nil {
		occurredAt, _ = time.Parse(time.RFC3339Nano, raw)
	}
	return domain.ClickEvent{
		SessionID:  sessionID,
		Sku:        sku,
		Name:       name,
		Position:   position,
		OccurredAt: occurredAt,
	}, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func boolAttr(item map[string]types.AttributeValue, key string) (bool, error) {
	v, ok := item[key]
	if !ok {
		return false, nil
	}
	b, ok := v.(*types.AttributeValueMemberBOOL)
	if !ok {
		return false, fmt.Errorf("repository: attribute %q is not a bool", key)
	}
	return b.Value, nil
}

package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// NodeType is the tag identifying what a node does.
type NodeType string

const (
	NodeTypeStart     NodeType = "start"
	NodeTypeEnd       NodeType = "end"
	NodeTypeAPICall   NodeType = "api_call"
	NodeTypeApproval  NodeType = "approval"
	NodeTypeCondition NodeType = "condition"
	NodeTypeTransform NodeType = "transform"
	NodeTypeEmail     NodeType = "email"
	NodeTypeDelay     NodeType = "delay"
)

// NodeTypes lists every node type the engine understands.
var NodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeEnd,
	NodeTypeAPICall,
	NodeTypeApproval,
	NodeTypeCondition,
	NodeTypeTransform,
	NodeTypeEmail,
	NodeTypeDelay,
}

// ErrUnknownNodeType is returned when a node carries a type tag the engine cannot execute.
var ErrUnknownNodeType = errors.New("unknown node type")

// Node is a node instance in a workflow graph. Data is admin-authored and schemaless
// until it is parsed into a typed NodeConfig.
type Node struct {
	ID   string         `json:"id"   validate:"required"`
	Type NodeType       `json:"type" validate:"required"`
	Data map[string]any `json:"data"`
}

// Label returns the human readable label stored in the node data.
func (n *Node) Label() string {
	if label, ok := n.Data["label"].(string); ok {
		return label
	}

	return string(n.Type)
}

// Edge is a directed connection between two nodes. SourceHandle distinguishes
// branch exits such as "true" and "false".
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"                 validate:"required"`
	Target       string `json:"target"                 validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// NodeConfig is the closed set of typed node configurations.
type NodeConfig interface {
	NodeType() NodeType
}

type StartConfig struct{}

func (StartConfig) NodeType() NodeType { return NodeTypeStart }

type EndConfig struct{}

func (EndConfig) NodeType() NodeType { return NodeTypeEnd }

// APICallConfig configures an outbound HTTP request.
type APICallConfig struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers"`
	Body       any               `json:"body"`
	Timeout    int               `json:"timeout"`     // seconds
	RetryCount int               `json:"retry_count"` // additional attempts after the first
	RetryDelay int               `json:"retry_delay"` // seconds between attempts
	Async      bool              `json:"async"`
	VerifySSL  *bool             `json:"verify_ssl"`
}

func (APICallConfig) NodeType() NodeType { return NodeTypeAPICall }

// BodyTemplate returns the request body as a template string. Structured bodies are JSON encoded.
func (c APICallConfig) BodyTemplate() (string, error) {
	switch body := c.Body.(type) {
	case nil:
		return "", nil
	case string:
		return body, nil
	default:
		encoded, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("failed to encode body: %w", err)
		}

		return string(encoded), nil
	}
}

// ShouldVerifySSL defaults to true when the node does not say otherwise.
func (c APICallConfig) ShouldVerifySSL() bool {
	return c.VerifySSL == nil || *c.VerifySSL
}

// ApprovalConfig configures a human approval gate.
type ApprovalConfig struct {
	ApproverEmail string `json:"approver_email"`
	Subject       string `json:"subject"`
	Message       string `json:"message"`
}

func (ApprovalConfig) NodeType() NodeType { return NodeTypeApproval }

// ConditionConfig compares a context field against a value.
type ConditionConfig struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

func (ConditionConfig) NodeType() NodeType { return NodeTypeCondition }

// Transformation is one mutation applied to the execution context.
type Transformation struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Operation string `json:"operation"`
}

// TransformConfig is an ordered list of context mutations.
type TransformConfig struct {
	Transformations []Transformation `json:"transformations"`
}

func (TransformConfig) NodeType() NodeType { return NodeTypeTransform }

// EmailConfig sends either a stored template or an ad-hoc message.
type EmailConfig struct {
	To          string `json:"to"`
	Subject     string `json:"subject"`
	Body        string `json:"body"`
	TemplateID  string `json:"template_id"`
	IncludeData bool   `json:"include_data"`
}

func (EmailConfig) NodeType() NodeType { return NodeTypeEmail }

// DelayConfig postpones the next step.
type DelayConfig struct {
	Seconds int `json:"seconds"`
}

func (DelayConfig) NodeType() NodeType { return NodeTypeDelay }

// ParseNodeConfig decodes the node data into its typed configuration.
func ParseNodeConfig(node *Node) (NodeConfig, error) {
	switch node.Type {
	case NodeTypeStart:
		return StartConfig{}, nil
	case NodeTypeEnd:
		return EndConfig{}, nil
	case NodeTypeAPICall:
		return decodeConfig[APICallConfig](node)
	case NodeTypeApproval:
		return decodeConfig[ApprovalConfig](node)
	case NodeTypeCondition:
		return decodeConfig[ConditionConfig](node)
	case NodeTypeTransform:
		return decodeConfig[TransformConfig](node)
	case NodeTypeEmail:
		return decodeConfig[EmailConfig](node)
	case NodeTypeDelay:
		return decodeConfig[DelayConfig](node)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, node.Type)
	}
}

func decodeConfig[T NodeConfig](node *Node) (NodeConfig, error) {
	var config T

	if len(node.Data) == 0 {
		return config, nil
	}

	raw, err := json.Marshal(node.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode data of node %s: %w", node.ID, err)
	}

	err = json.Unmarshal(raw, &config)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration for node %s (%s): %w", node.ID, node.Type, err)
	}

	return config, nil
}

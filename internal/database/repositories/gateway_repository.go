package repositories

import (
	"context"

	"gorm.io/gorm"

	"github.com/hearthd/hearthd/internal/database/models"
)

// GatewayRepository handles gateway data access.
type GatewayRepository struct {
	db *gorm.DB
}

// NewGatewayRepository creates a new GatewayRepository.
func NewGatewayRepository(db *gorm.DB) *GatewayRepository {
	return &GatewayRepository{db: db}
}

// FindAll returns all gateways.
func (r *GatewayRepository) FindAll(ctx context.Context) ([]models.Gateway, error) {
	var gateways []models.Gateway
	result := r.db.WithContext(ctx).Order("gateway_id ASC").Find(&gateways)
	return gateways, result.Error
}

// FindBySubscribeTopic returns the gateway listening on a topic.
func (r *GatewayRepository) FindBySubscribeTopic(ctx context.Context, topic string) (*models.Gateway, error) {
	var gateway models.Gateway
	result := r.db.WithContext(ctx).First(&gateway, "subscribe_topic = ?", topic)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &gateway, nil
}

// Create creates a new gateway.
func (r *GatewayRepository) Create(ctx context.Context, gateway *models.Gateway) error {
	return r.db.WithContext(ctx).Create(gateway).Error
}

// Update persists changes to an existing gateway.
func (r *GatewayRepository) Update(ctx context.Context, gateway *models.Gateway) error {
	return r.db.WithContext(ctx).Save(gateway).Error
}

// NodeRepository handles node data access.
type NodeRepository struct {
	db *gorm.DB
}

// NewNodeRepository creates a new NodeRepository.
func NewNodeRepository(db *gorm.DB) *NodeRepository {
	return &NodeRepository{db: db}
}

// FindByMySensorsID returns a node by its owning gateway and MySensors
// node id.
func (r *NodeRepository) FindByMySensorsID(ctx context.Context, gatewayID uint, mySensorsID int) (*models.Node, error) {
	var node models.Node
	result := r.db.WithContext(ctx).
		First(&node, "gateway_id = ? AND mysensors_node_id = ?", gatewayID, mySensorsID)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, result.Error
	}
	return &node, nil
}

// FindByGatewayID returns all nodes behind a gateway.
func (r *NodeRepository) FindByGatewayID(ctx context.Context, gatewayID uint) ([]models.Node, error) {
	var nodes []models.Node
	result := r.db.WithContext(ctx).
		Where("gateway_id = ?", gatewayID).
		Order("node_id ASC").
		Find(&nodes)
	return nodes, result.Error
}

// Create creates a new node.
func (r *NodeRepository) Create(ctx context.Context, node *models.Node) error {
	return r.db.WithContext(ctx).Create(node).Error
}

// Update persists changes to an existing node.
func (r *NodeRepository) Update(ctx context.Context, node *models.Node) error {
	return r.db.WithContext(ctx).Save(node).Error
}

// CreateOrUpdate looks a node up by gateway and MySensors id and either
// applies the updates or creates the row. Returns the node id.
func (r *NodeRepository) CreateOrUpdate(ctx context.Context, node *models.Node) (uint, error) {
	existing, err := r.FindByMySensorsID(ctx, node.GatewayID, node.MySensorsNodeID)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		node.ID = existing.ID
		return existing.ID, r.Update(ctx, node)
	}
	if err := r.Create(ctx, node); err != nil {
		return 0, err
	}
	return node.ID, nil
}

// Package mq 提供RabbitMQ连接管理与订单事件发布
package mq

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/config"
)

// ErrNotConnected 连接尚未建立或已关闭
var ErrNotConnected = errors.New("rabbitmq is not connected")

// ConnectionState 连接状态
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	heartbeatInterval = 10 * time.Second
	reconnectInterval = 5 * time.Second
	dialTimeout       = 10 * time.Second
)

// URL 根据配置拼接 amqp 连接串
func URL(cfg config.MQConfig) string {
	vhost := strings.TrimPrefix(cfg.VHost, "/")
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(cfg.Username, cfg.Password),
		Host:   fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Path:   "/" + vhost,
	}
	return u.String()
}

// ConnectionManager RabbitMQ连接管理器，连接意外断开时后台重连
type ConnectionManager struct {
	url    string
	logger *zap.Logger

	conn      *amqp.Connection
	connMutex sync.RWMutex
	state     int32

	stopCh         chan struct{}
	reconnectCount int32

	onReconnected func()
}

// NewConnectionManager 创建连接管理器
func NewConnectionManager(cfg config.MQConfig, logger *zap.Logger) *ConnectionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionManager{
		url:    URL(cfg),
		logger: logger,
		state:  int32(StateDisconnected),
		stopCh: make(chan struct{}),
	}
}

// Connect 建立连接
func (cm *ConnectionManager) Connect(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&cm.state, int32(StateDisconnected), int32(StateConnecting)) {
		return fmt.Errorf("connection is already in progress or connected")
	}

	if err := cm.dial(ctx); err != nil {
		atomic.StoreInt32(&cm.state, int32(StateDisconnected))
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	cm.logger.Info("RabbitMQ connected")
	go cm.monitorConnection()
	return nil
}

func (cm *ConnectionManager) dial(ctx context.Context) error {
	type result struct {
		conn *amqp.Connection
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := amqp.DialConfig(cm.url, amqp.Config{
			Heartbeat: heartbeatInterval,
			Locale:    "en_US",
			Dial:      amqp.DefaultDial(dialTimeout),
		})
		done <- result{conn, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		cm.connMutex.Lock()
		defer cm.connMutex.Unlock()
		if !atomic.CompareAndSwapInt32(&cm.state, int32(StateConnecting), int32(StateConnected)) &&
			!atomic.CompareAndSwapInt32(&cm.state, int32(StateReconnecting), int32(StateConnected)) {
			// 拨号期间连接已被关闭
			_ = r.conn.Close()
			return ErrNotConnected
		}
		cm.conn = r.conn
		return nil
	case <-ctx.Done():
		// 拨号晚于超时完成时关闭多余连接
		go func() {
			if r := <-done; r.conn != nil {
				_ = r.conn.Close()
			}
		}()
		return ctx.Err()
	}
}

// Channel 打开新通道，调用方负责关闭
func (cm *ConnectionManager) Channel() (*amqp.Channel, error) {
	if !cm.IsConnected() {
		return nil, ErrNotConnected
	}
	cm.connMutex.RLock()
	conn := cm.conn
	cm.connMutex.RUnlock()
	if conn == nil || conn.IsClosed() {
		return nil, ErrNotConnected
	}
	return conn.Channel()
}

// IsConnected 检查是否已连接
func (cm *ConnectionManager) IsConnected() bool {
	return atomic.LoadInt32(&cm.state) == int32(StateConnected)
}

// State 获取连接状态
func (cm *ConnectionManager) State() ConnectionState {
	return ConnectionState(atomic.LoadInt32(&cm.state))
}

// OnReconnected 注册重连成功回调，发布者借此重新声明交换机
func (cm *ConnectionManager) OnReconnected(fn func()) {
	cm.onReconnected = fn
}

// Close 关闭连接
func (cm *ConnectionManager) Close() error {
	for {
		s := atomic.LoadInt32(&cm.state)
		if s == int32(StateClosed) {
			return nil
		}
		if atomic.CompareAndSwapInt32(&cm.state, s, int32(StateClosed)) {
			break
		}
	}

	cm.logger.Info("closing RabbitMQ connection")
	close(cm.stopCh)

	cm.connMutex.Lock()
	defer cm.connMutex.Unlock()
	if cm.conn != nil {
		err := cm.conn.Close()
		cm.conn = nil
		return err
	}
	return nil
}

// monitorConnection 监听连接关闭事件
func (cm *ConnectionManager) monitorConnection() {
	cm.connMutex.RLock()
	conn := cm.conn
	cm.connMutex.RUnlock()
	if conn == nil {
		return
	}

	closeCh := conn.NotifyClose(make(chan *amqp.Error, 1))
	select {
	case err := <-closeCh:
		if err != nil {
			cm.logger.Error("RabbitMQ connection closed unexpectedly", zap.Error(err))
			cm.handleDisconnection(err)
		}
	case <-cm.stopCh:
	}
}

func (cm *ConnectionManager) handleDisconnection(err error) {
	if !atomic.CompareAndSwapInt32(&cm.state, int32(StateConnected), int32(StateReconnecting)) {
		return
	}
	cm.logger.Warn("RabbitMQ disconnected, reconnecting", zap.Error(err))
	go cm.reconnect()
}

// reconnect 按固定间隔重连，直到成功或连接被关闭
func (cm *ConnectionManager) reconnect() {
	defer func() {
		if r := recover(); r != nil {
			cm.logger.Error("panic during RabbitMQ reconnect", zap.Any("panic", r))
		}
	}()

	for attempt := 1; ; attempt++ {
		select {
		case <-cm.stopCh:
			return
		case <-time.After(reconnectInterval):
		}

		atomic.AddInt32(&cm.reconnectCount, 1)
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		err := cm.dial(ctx)
		cancel()
		if err != nil {
			cm.logger.Error("RabbitMQ reconnect failed", zap.Error(err), zap.Int("attempt", attempt))
			continue
		}

		cm.logger.Info("RabbitMQ reconnected", zap.Int("attempts", attempt))
		if cm.onReconnected != nil {
			cm.onReconnected()
		}
		go cm.monitorConnection()
		return
	}
}

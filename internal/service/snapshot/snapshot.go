// Package snapshot 缓存每个用例当前生效的列类型与划分
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/ashwinyue/next-eval/internal/model"
)

// Redis key 前缀
const keyPrefix = "next-eval:snapshot:"

// Manager 快照管理器：进程内 map，可选 Redis 持久化
type Manager struct {
	mu     sync.RWMutex
	memory map[string]*model.DatasetSnapshot
	redis  redis.Cmdable
	ttl    time.Duration
	log    logrus.FieldLogger

	locks *KeyedMutex
}

// NewManager 创建快照管理器，redisClient 可为 nil
func NewManager(redisClient redis.Cmdable, ttl time.Duration, log logrus.FieldLogger) *Manager {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		memory: make(map[string]*model.DatasetSnapshot),
		redis:  redisClient,
		ttl:    ttl,
		log:    log,
		locks:  NewKeyedMutex(),
	}
}

// Lock 获取用例的写锁，同一用例的写操作串行执行
func (m *Manager) Lock(useCaseID string) (unlock func()) {
	return m.locks.Lock(useCaseID)
}

// Get 获取用例快照，不存在时返回 false
// 配置了 Redis 时以 Redis 为准，多个实例共享同一份快照；Redis 不可用时退回进程内缓存
func (m *Manager) Get(ctx context.Context, useCaseID string) (*model.DatasetSnapshot, bool) {
	if m.redis != nil {
		snap, err := m.loadFromRedis(ctx, useCaseID)
		if err == nil {
			return m.syncMemory(useCaseID, snap)
		}
		m.log.WithError(err).WithField("use_case_id", useCaseID).Warn("failed to load snapshot from redis, using local copy")
	}

	m.mu.RLock()
	snap, ok := m.memory[useCaseID]
	m.mu.RUnlock()
	return snap, ok
}

// syncMemory 用 Redis 中的结果刷新本地副本，snap 为 nil 表示 Redis 中已无快照
func (m *Manager) syncMemory(useCaseID string, snap *model.DatasetSnapshot) (*model.DatasetSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if snap == nil {
		delete(m.memory, useCaseID)
		return nil, false
	}
	// 本实例写 Redis 失败时本地可能更新
	if cur, ok := m.memory[useCaseID]; ok && cur.Version > snap.Version {
		return cur, true
	}
	m.memory[useCaseID] = snap
	return snap, true
}

// Put 整体替换用例快照
func (m *Manager) Put(ctx context.Context, snap *model.DatasetSnapshot) {
	m.mu.Lock()
	m.memory[snap.UseCaseID] = snap
	m.mu.Unlock()

	if m.redis == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		m.log.WithError(err).Warn("failed to encode snapshot")
		return
	}
	if err := m.redis.Set(ctx, keyPrefix+snap.UseCaseID, data, m.ttl).Err(); err != nil {
		m.log.WithError(err).WithField("use_case_id", snap.UseCaseID).Warn("failed to save snapshot to redis")
	}
}

// Invalidate 删除用例快照
func (m *Manager) Invalidate(ctx context.Context, useCaseID string) {
	m.mu.Lock()
	delete(m.memory, useCaseID)
	m.mu.Unlock()

	if m.redis == nil {
		return
	}
	if err := m.redis.Del(ctx, keyPrefix+useCaseID).Err(); err != nil {
		m.log.WithError(err).WithField("use_case_id", useCaseID).Warn("failed to delete snapshot from redis")
	}
}

// loadFromRedis 读取 Redis 中的快照，key 不存在或内容无法解码时返回 nil
func (m *Manager) loadFromRedis(ctx context.Context, useCaseID string) (*model.DatasetSnapshot, error) {
	data, err := m.redis.Get(ctx, keyPrefix+useCaseID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var snap model.DatasetSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		m.log.WithError(err).WithField("use_case_id", useCaseID).Warn("discarding undecodable snapshot")
		return nil, nil
	}
	return &snap, nil
}

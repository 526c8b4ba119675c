package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis 分布式锁
//
// 加锁：SET key value NX EX ttl
//   - NX 保证互斥
//   - EX 防止持有者崩溃后锁永不释放
//   - value 标识持有者，释放时校验，避免删掉别人的锁
//
// 释放：Lua 脚本里先比较 value 再删除，两步是原子的

var unlockScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`)

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞加锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Unlock 只释放自己持有的锁
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Err()
}

// NewWithdrawalSyncLock 按提现ID维度加锁，同一笔提现同一时刻只允许一个节点对账
func NewWithdrawalSyncLock(client *redis.Client, withdrawalID, owner string, ttl time.Duration) *DistributedLock {
	key := fmt.Sprintf("withdrawal:sync:lock:%s", withdrawalID)
	return NewDistributedLock(client, key, owner, ttl)
}

package snowflake

import (
	"fmt"
	"sync"
	"time"
)

type Snowflake struct {
	Timestamp int64
	WorkerID  int64
	Increment int64
}

const (
	timestampLength int64 = 42                                    // 42
	timestampPos          = 64 - timestampLength                  // 22
	workerLength    int64 = 10                                    // 10
	workerPos             = timestampPos - workerLength           // 12
	incrementLength       = 64 - (timestampLength + workerLength) // 12

	maxWorkerValue    int64 = 1<<workerLength - 1
	maxIncrementValue int64 = 1<<incrementLength - 1
)

// Node generates ids that are unique per worker and increase with time, so
// ordering by id matches insertion order.
type Node struct {
	mutex         sync.Mutex
	workerID      int64
	lastTimestamp int64
	lastIncrement int64
	now           func() time.Time
}

func NewNode(workerID int64) (*Node, error) {
	if workerID < 0 || workerID > maxWorkerValue {
		return nil, fmt.Errorf("worker ID value must be between 0 and [%d]", maxWorkerValue)
	}
	return &Node{workerID: workerID, now: time.Now}, nil
}

// Generate returns the next id. When the increment for the current
// millisecond overflows it waits for the next millisecond.
func (n *Node) Generate() (int64, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	timestamp := n.now().UnixMilli()
	if timestamp < n.lastTimestamp {
		return 0, fmt.Errorf("clock moved backwards by %dms", n.lastTimestamp-timestamp)
	}

	if timestamp == n.lastTimestamp {
		n.lastIncrement++
		if n.lastIncrement > maxIncrementValue {
			for timestamp <= n.lastTimestamp {
				time.Sleep(100 * time.Microsecond)
				timestamp = n.now().UnixMilli()
			}
			n.lastIncrement = 0
		}
	} else {
		n.lastIncrement = 0
	}
	n.lastTimestamp = timestamp

	return timestamp<<timestampPos | n.workerID<<workerPos | n.lastIncrement, nil
}

func Extract(snowflakeID int64) Snowflake {
	return Snowflake{
		Timestamp: snowflakeID >> timestampPos,
		WorkerID:  (snowflakeID >> workerPos) & maxWorkerValue,
		Increment: snowflakeID & maxIncrementValue,
	}
}

func ExtractTimestamp(snowflakeID int64) int64 {
	return snowflakeID >> timestampPos
}

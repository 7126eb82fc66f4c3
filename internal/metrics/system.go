package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

/* SystemMetrics is a snapshot of the signing host's resource usage,
   served on /api/v1/system/metrics and streamed over the websocket */
type SystemMetrics struct {
	Timestamp time.Time      `json:"timestamp"`
	Host      HostMetrics    `json:"host"`
	CPU       CPUMetrics     `json:"cpu"`
	Memory    MemoryMetrics  `json:"memory"`
	Disk      DiskMetrics    `json:"disk"`
	Network   NetworkMetrics `json:"network"`
	Process   ProcessMetrics `json:"process"`
}

/* HostMetrics identifies the machine the service runs on */
type HostMetrics struct {
	Hostname      string `json:"hostname"`
	Platform      string `json:"platform,omitempty"`
	KernelVersion string `json:"kernel_version,omitempty"`
	UptimeSeconds uint64 `json:"uptime_seconds"`
}

/* CPUMetrics contains CPU usage information */
type CPUMetrics struct {
	UsagePercent float64   `json:"usage_percent"`
	UsagePerCore []float64 `json:"usage_per_core,omitempty"`
	Count        int       `json:"count"`
	Frequency    float64   `json:"frequency,omitempty"`
}

/* MemoryMetrics contains memory usage information */
type MemoryMetrics struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
	Cached      uint64  `json:"cached,omitempty"`
	Buffers     uint64  `json:"buffers,omitempty"`
}

/* DiskMetrics contains disk usage information */
type DiskMetrics struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
	ReadBytes   uint64  `json:"read_bytes,omitempty"`
	WriteBytes  uint64  `json:"write_bytes,omitempty"`
	ReadCount   uint64  `json:"read_count,omitempty"`
	WriteCount  uint64  `json:"write_count,omitempty"`
}

/* NetworkMetrics contains network usage information */
type NetworkMetrics struct {
	BytesSent     uint64  `json:"bytes_sent"`
	BytesRecv     uint64  `json:"bytes_recv"`
	PacketsSent   uint64  `json:"packets_sent"`
	PacketsRecv   uint64  `json:"packets_recv"`
	BytesSentRate float64 `json:"bytes_sent_rate,omitempty"`
	BytesRecvRate float64 `json:"bytes_recv_rate,omitempty"`
}

/* ProcessMetrics contains information about this process */
type ProcessMetrics struct {
	GoRoutines int    `json:"go_routines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	HeapIdle   uint64 `json:"heap_idle"`
	HeapInuse  uint64 `json:"heap_inuse"`
}

var (
	lastNetworkStats *net.IOCountersStat
	lastNetworkTime  time.Time
)

/* CollectSystemMetrics samples current host and process metrics.
   Collection is best-effort: a failed read leaves its section zeroed
   rather than failing the whole snapshot */
func CollectSystemMetrics(ctx context.Context) (*SystemMetrics, error) {
	metrics := &SystemMetrics{
		Timestamp: time.Now(),
	}

	hostInfo, err := host.InfoWithContext(ctx)
	if err == nil {
		metrics.Host.Hostname = hostInfo.Hostname
		metrics.Host.Platform = hostInfo.Platform
		metrics.Host.KernelVersion = hostInfo.KernelVersion
		metrics.Host.UptimeSeconds = hostInfo.Uptime
	}

	/* One sampling window, overall usage derived from the per-core figures */
	perCore, err := cpu.PercentWithContext(ctx, time.Second, true)
	if err == nil && len(perCore) > 0 {
		metrics.CPU.UsagePerCore = perCore
		var sum float64
		for _, v := range perCore {
			sum += v
		}
		metrics.CPU.UsagePercent = sum / float64(len(perCore))
	}

	cpuCount, err := cpu.Counts(true)
	if err == nil {
		metrics.CPU.Count = cpuCount
	}

	cpuInfo, err := cpu.InfoWithContext(ctx)
	if err == nil && len(cpuInfo) > 0 {
		metrics.CPU.Frequency = cpuInfo[0].Mhz
	}

	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		metrics.Memory.Total = memStat.Total
		metrics.Memory.Used = memStat.Used
		metrics.Memory.Available = memStat.Available
		metrics.Memory.Free = memStat.Free
		metrics.Memory.UsedPercent = memStat.UsedPercent
		metrics.Memory.Cached = memStat.Cached
		metrics.Memory.Buffers = memStat.Buffers
	}

	diskStat, err := disk.UsageWithContext(ctx, "/")
	if err == nil {
		metrics.Disk.Total = diskStat.Total
		metrics.Disk.Used = diskStat.Used
		metrics.Disk.Free = diskStat.Free
		metrics.Disk.UsedPercent = diskStat.UsedPercent
	}

	diskIO, err := disk.IOCountersWithContext(ctx)
	if err == nil {
		for _, io := range diskIO {
			metrics.Disk.ReadBytes += io.ReadBytes
			metrics.Disk.WriteBytes += io.WriteBytes
			metrics.Disk.ReadCount += io.ReadCount
			metrics.Disk.WriteCount += io.WriteCount
		}
	}

	netIO, err := net.IOCountersWithContext(ctx, false)
	if err == nil && len(netIO) > 0 {
		stats := netIO[0]
		metrics.Network.BytesSent = stats.BytesSent
		metrics.Network.BytesRecv = stats.BytesRecv
		metrics.Network.PacketsSent = stats.PacketsSent
		metrics.Network.PacketsRecv = stats.PacketsRecv

		if lastNetworkStats != nil && !lastNetworkTime.IsZero() {
			elapsed := time.Since(lastNetworkTime).Seconds()
			if elapsed > 0 {
				metrics.Network.BytesSentRate = float64(stats.BytesSent-lastNetworkStats.BytesSent) / elapsed
				metrics.Network.BytesRecvRate = float64(stats.BytesRecv-lastNetworkStats.BytesRecv) / elapsed
			}
		}
		lastNetworkStats = &stats
		lastNetworkTime = time.Now()
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.Process.GoRoutines = runtime.NumGoroutine()
	metrics.Process.HeapAlloc = m.HeapAlloc
	metrics.Process.HeapSys = m.HeapSys
	metrics.Process.HeapIdle = m.HeapIdle
	metrics.Process.HeapInuse = m.HeapInuse

	return metrics, nil
}

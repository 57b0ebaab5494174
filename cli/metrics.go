package cli

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	appcfg "ns-keys/internal/config"
)

// After 命令结束后把指标写入 [Metrics] Textfile，供 node_exporter textfile collector 采集
func After(c *cli.Context) error {
	cfg, ok := c.Context.Value(CtxConfig).(*appcfg.Config)
	if !ok || cfg.MetricsFile == "" {
		return nil
	}
	return writeMetrics(cfg.MetricsFile, prometheus.DefaultGatherer)
}

func writeMetrics(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		log.Errorf("writeMetrics: failed to write %s: %v", path, err)
		return err
	}
	log.Debugf("writeMetrics: metrics written to %s", path)
	return nil
}

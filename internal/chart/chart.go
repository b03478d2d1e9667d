// Package chart 把缓存的 K 线渲染成 go-echarts HTML 页面（可选 headless 截图为 PNG）。
package chart

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"
	"time"

	"candlecache/internal/market"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
	talib "github.com/markcheno/go-talib"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorBull          = "#34d399"
	colorBear          = "#f87171"
	colorEmaFast       = "#3b82f6"
	colorEmaMid        = "#fbbf24"
	colorEmaSlow       = "#f472b6"
	colorDIF           = "#22d3ee"
	colorDEA           = "#fb7185"

	chartWidthPx   = 1600
	klineHeightPx  = 600
	volumeHeightPx = 260
	macdHeightPx   = 260

	// DefaultLimit 是未指定时渲染的最近根数。
	DefaultLimit = 500
)

var emaPeriods = [3]int{7, 25, 99}

// Input 描述一次渲染；Candles 顺序任意，渲染前按时间升序排列。
type Input struct {
	Symbol   string
	TimeUnit string
	Candles  []market.Candle
	Limit    int
}

// RenderHTML 输出 K 线 + EMA、成交量、MACD 三个面板。
func RenderHTML(w io.Writer, in Input) error {
	page, err := buildPage(in)
	if err != nil {
		return err
	}
	return page.Render(w)
}

// RenderPNG 通过 headless Chrome 截图；运行环境需要可用的 Chrome。
func RenderPNG(ctx context.Context, in Input) ([]byte, error) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, in); err != nil {
		return nil, err
	}
	return renderHTMLToPNG(ctx, buf.Bytes(), chartWidthPx, klineHeightPx+volumeHeightPx+macdHeightPx)
}

func buildPage(in Input) (*components.Page, error) {
	if strings.TrimSpace(in.Symbol) == "" {
		return nil, fmt.Errorf("symbol required for chart render")
	}
	history := sortedCopy(in.Candles)
	if len(history) == 0 {
		return nil, fmt.Errorf("no candles cached for %s %s", in.Symbol, in.TimeUnit)
	}
	limit := in.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	candles := history
	if len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = fmt.Sprintf("%s %s", strings.ToUpper(in.Symbol), in.TimeUnit)

	xAxis := buildXAxis(candles)
	kline := buildKlineChart(in, candles, xAxis)
	ema := buildEMALine(candles, history)
	ema.SetXAxis(xAxis)
	kline.Overlap(ema)

	page.AddCharts(kline, buildVolumeChart(in.TimeUnit, xAxis, candles), buildMACDChart(in.TimeUnit, xAxis, candles, history))
	return page, nil
}

func buildKlineChart(in Input, candles []market.Candle, xAxis []string) *charts.Kline {
	minPrice, maxPrice := priceBounds(candles)
	padding := (maxPrice - minPrice) * 0.05
	if padding <= 0 {
		padding = math.Max(1e-8, math.Abs(maxPrice)*0.01)
	}
	first, last := candles[0], candles[len(candles)-1]
	kline := charts.NewKLine()
	kline.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", klineHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTitleOpts(opts.Title{
			Title: fmt.Sprintf("%s %s", strings.ToUpper(in.Symbol), in.TimeUnit),
			Subtitle: fmt.Sprintf("%d candles | %s → %s | close %s",
				len(candles),
				time.UnixMilli(first.Timestamp).UTC().Format(time.DateTime),
				time.UnixMilli(last.Timestamp).UTC().Format(time.DateTime),
				formatPrice(last.Close)),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			Min:       round(minPrice-padding, 8),
			Max:       round(maxPrice+padding, 8),
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	kline.SetSeriesOptions(
		charts.WithItemStyleOpts(opts.ItemStyle{
			Color:        colorBull,
			Color0:       colorBear,
			BorderColor:  colorBull,
			BorderColor0: colorBear,
		}),
	)
	kline.SetXAxis(xAxis)
	kline.AddSeries("Price", buildKlineSeries(candles))
	return kline
}

func buildXAxis(candles []market.Candle) []string {
	x := make([]string, len(candles))
	for i, c := range candles {
		x[i] = time.UnixMilli(c.Timestamp).UTC().Format("2006-01-02 15:04")
	}
	return x
}

func buildKlineSeries(candles []market.Candle) []opts.KlineData {
	data := make([]opts.KlineData, 0, len(candles))
	for _, c := range candles {
		data = append(data, opts.KlineData{Value: [4]float64{c.Open, c.Close, c.Low, c.High}})
	}
	return data
}

// buildEMALine 在完整历史上计算 EMA，再截取可见窗口。
func buildEMALine(candles, history []market.Candle) *charts.Line {
	line := charts.NewLine()
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	closes := closesOf(history)
	colors := [3]string{colorEmaFast, colorEmaMid, colorEmaSlow}
	for i, period := range emaPeriods {
		var series []float64
		if len(closes) >= period {
			series = tailSeries(talib.Ema(closes, period), len(candles))
			// talib 在前 period-1 个位置填 0
			lead := len(closes) - len(series)
			for j := range series {
				if lead+j < period-1 {
					series[j] = math.NaN()
				}
			}
		}
		line.AddSeries(fmt.Sprintf("EMA%d", period), toLineData(series, len(candles)),
			charts.WithLineStyleOpts(opts.LineStyle{Color: colors[i], Width: 2}))
	}
	return line
}

func buildVolumeChart(unit string, xAxis []string, candles []market.Candle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", volumeHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("Volume %s", unit), Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			SplitNumber: 6,
			AxisLabel:   &opts.AxisLabel{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	vols := make([]opts.BarData, len(candles))
	for i, c := range candles {
		color := colorBear
		if c.Close >= c.Open {
			color = colorBull
		}
		vols[i] = opts.BarData{
			Value: c.Volume,
			ItemStyle: &opts.ItemStyle{
				Color:   color,
				Opacity: opts.Float(0.6),
			},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Volume", vols)
	return bar
}

func buildMACDChart(unit string, xAxis []string, candles, history []market.Candle) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", macdHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: fmt.Sprintf("MACD %s", unit), Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextSecondary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)
	dif, dea, hist := calcMACDSeries(history)
	dif = tailSeries(dif, len(candles))
	dea = tailSeries(dea, len(candles))
	hist = tailSeries(hist, len(candles))
	histData := make([]opts.BarData, len(candles))
	offset := len(candles) - len(hist)
	for i := range histData {
		histData[i] = opts.BarData{Value: nil}
	}
	for i, v := range hist {
		if math.IsNaN(v) {
			continue
		}
		color := colorBear
		if v >= 0 {
			color = colorBull
		}
		histData[offset+i] = opts.BarData{Value: round(v, 8), ItemStyle: &opts.ItemStyle{Color: color}}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("MACD Hist", histData)

	line := charts.NewLine()
	line.SetSeriesOptions(
		charts.WithLineStyleOpts(opts.LineStyle{Width: 2}),
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("DIF", toLineData(dif, len(candles)), charts.WithLineStyleOpts(opts.LineStyle{Color: colorDIF, Width: 2}))
	line.AddSeries("DEA", toLineData(dea, len(candles)), charts.WithLineStyleOpts(opts.LineStyle{Color: colorDEA, Width: 2}))
	bar.Overlap(line)
	return bar
}

func calcMACDSeries(candles []market.Candle) (dif, dea, hist []float64) {
	const slow = 26
	if len(candles) < slow {
		return nil, nil, nil
	}
	return talib.Macd(closesOf(candles), 12, 26, 9)
}

func toLineData(series []float64, length int) []opts.LineData {
	line := make([]opts.LineData, length)
	offset := length - len(series)
	if offset < 0 {
		offset = 0
	}
	for i := 0; i < offset; i++ {
		line[i] = opts.LineData{Value: nil}
	}
	for i := 0; i < len(series) && offset+i < length; i++ {
		if val := series[i]; math.IsNaN(val) {
			line[offset+i] = opts.LineData{Value: nil}
		} else {
			line[offset+i] = opts.LineData{Value: round(val, 8)}
		}
	}
	return line
}

func tailSeries(series []float64, keep int) []float64 {
	if keep <= 0 || len(series) == 0 {
		return nil
	}
	if len(series) <= keep {
		return append([]float64(nil), series...)
	}
	return append([]float64(nil), series[len(series)-keep:]...)
}

func sortedCopy(in []market.Candle) []market.Candle {
	out := append([]market.Candle(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

func closesOf(candles []market.Candle) []float64 {
	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	return closes
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

func formatPrice(v float64) string {
	return fmt.Sprintf("%.8g", v)
}

func priceBounds(candles []market.Candle) (minVal, maxVal float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	minVal, maxVal = candles[0].Low, candles[0].High
	for _, c := range candles {
		minVal = math.Min(minVal, c.Low)
		maxVal = math.Max(maxVal, c.High)
	}
	return minVal, maxVal
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}

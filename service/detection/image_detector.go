/*
 * @module service/detection/image_detector
 * @description 图像取证分析器，执行重压缩差异(ELA)、梯度方差清晰度与动态范围三项启发式检查
 * @architecture 分层架构 - 检测引擎图像层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 图像解码 -> ELA检查 -> 清晰度检查 -> 动态范围检查 -> 结果输出
 * @rules 三项检查顺序固定，互不竞争排名；解码或处理失败转换为单条File Error结果
 * @dependencies image/jpeg, image/png, image/gif, golang.org/x/image/bmp
 * @refs service/detection/tabular_detector.go, service/scan/
 */

package detection

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"math"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"

	"datascan-service/service/models"
)

const (
	// ELA重编码质量与判定阈值
	elaQuality       = 90
	elaThreshold     = 12.0
	elaHighThreshold = 20.0

	// 梯度方差清晰度阈值
	sharpnessThreshold       = 25.0
	sharpnessMediumThreshold = 15.0
	sharpnessConfThreshold   = 20.0

	// 强度动态范围阈值
	dynamicRangeThreshold = 30.0
)

const (
	descELA       = "Error level analysis found recompression differences: possible local edits or re-saving."
	descSharpness = "Low edge/texture energy detected: image may be blurred or lack detail."
	descRange     = "Narrow dynamic range: image appears washed out or over-compressed."
)

// DecodeImage 解码常见格式图像(png/jpeg/gif/bmp)
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

// DetectImageAnomalies 对已解码图像执行取证检查
// 检查顺序固定为 ELA -> 清晰度 -> 动态范围；每项独立判定，互不影响
func DetectImageAnomalies(img image.Image) (findings []models.AnomalyFinding) {
	defer func() {
		if r := recover(); r != nil {
			findings = []models.AnomalyFinding{
				fileErrorFinding(fmt.Sprintf("Error processing image: %v", r), locationImageProcessing),
			}
		}
	}()

	findings = []models.AnomalyFinding{}
	if img == nil {
		return findings
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return findings
	}

	score, err := elaScore(img)
	if err != nil {
		return []models.AnomalyFinding{
			fileErrorFinding(fmt.Sprintf("Error processing image: %v", err), locationImageProcessing),
		}
	}
	if f, ok := elaFinding(score); ok {
		findings = append(findings, f)
	}

	intensity := grayIntensity(img)

	if gradVar, ok := gradientVariance(intensity); ok {
		if f, ok := sharpnessFinding(gradVar); ok {
			findings = append(findings, f)
		}
	}

	if f, ok := rangeFinding(dynamicRange(intensity)); ok {
		findings = append(findings, f)
	}
	return findings
}

// elaFinding ELA得分超阈值时生成篡改疑似结果
func elaFinding(score float64) (models.AnomalyFinding, bool) {
	if score <= elaThreshold {
		return models.AnomalyFinding{}, false
	}
	severity := models.SeverityMedium
	if score > elaHighThreshold {
		severity = models.SeverityHigh
	}
	return models.AnomalyFinding{
		Kind:        models.KindVisualManipulation,
		Location:    "Global",
		Severity:    severity,
		Description: descELA,
		Confidence:  round2(math.Min(0.95, 0.5+score/40)),
	}, true
}

// sharpnessFinding 梯度方差低于阈值时生成低清晰度结果
func sharpnessFinding(gradVar float64) (models.AnomalyFinding, bool) {
	if gradVar >= sharpnessThreshold {
		return models.AnomalyFinding{}, false
	}
	severity := models.SeverityLow
	if gradVar < sharpnessMediumThreshold {
		severity = models.SeverityMedium
	}
	confidence := 0.55
	if gradVar < sharpnessConfThreshold {
		confidence = 0.6
	}
	return models.AnomalyFinding{
		Kind:        models.KindImageQuality,
		Location:    "Global",
		Severity:    severity,
		Description: descSharpness,
		Confidence:  confidence,
	}, true
}

// rangeFinding 动态范围过窄时生成图像质量结果
func rangeFinding(rangeValue float64) (models.AnomalyFinding, bool) {
	if rangeValue >= dynamicRangeThreshold {
		return models.AnomalyFinding{}, false
	}
	return models.AnomalyFinding{
		Kind:        models.KindImageQuality,
		Location:    "Global",
		Severity:    models.SeverityLow,
		Description: descRange,
		Confidence:  0.55,
	}, true
}

// DetectImageBytes 从图像字节流执行取证检查
// 解码失败转换为单条File Error结果，与表格检测器的失败契约一致
func DetectImageBytes(data []byte) []models.AnomalyFinding {
	img, err := DecodeImage(data)
	if err != nil {
		return []models.AnomalyFinding{
			fileErrorFinding(fmt.Sprintf("Error processing image: %v", err), locationImageProcessing),
		}
	}
	return DetectImageAnomalies(img)
}

// elaScore 以固定有损质量重编码后计算全通道平均绝对像素差
func elaScore(img image.Image) (float64, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: elaQuality}); err != nil {
		return 0, fmt.Errorf("ELA重编码失败: %w", err)
	}
	recompressed, err := jpeg.Decode(&buf)
	if err != nil {
		return 0, fmt.Errorf("ELA解码失败: %w", err)
	}

	// 重解码图像边界恒从原点开始，与原图各自按偏移坐标寻址
	bounds := img.Bounds()
	rb := recompressed.Bounds()
	total := 0.0
	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			r1, g1, b1, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			r2, g2, b2, _ := recompressed.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			total += math.Abs(float64(r1>>8) - float64(r2>>8))
			total += math.Abs(float64(g1>>8) - float64(g2>>8))
			total += math.Abs(float64(b1>>8) - float64(b2>>8))
		}
	}
	pixels := float64(bounds.Dx() * bounds.Dy())
	return total / (3 * pixels), nil
}

// grayIntensity 转换为单通道亮度矩阵，8位标准luma加权
func grayIntensity(img image.Image) [][]float64 {
	bounds := img.Bounds()
	intensity := make([][]float64, bounds.Dy())
	for y := 0; y < bounds.Dy(); y++ {
		row := make([]float64, bounds.Dx())
		for x := 0; x < bounds.Dx(); x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			row[x] = 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
		}
		intensity[y] = row
	}
	return intensity
}

// gradientVariance 水平/垂直有限差分梯度幅值图的方差
// 图像尺寸不足以构成重叠像素时返回ok=false，跳过清晰度判定
func gradientVariance(intensity [][]float64) (float64, bool) {
	height := len(intensity)
	if height < 2 {
		return 0, false
	}
	width := len(intensity[0])
	if width < 2 {
		return 0, false
	}

	magnitudes := make([]float64, 0, (height-1)*(width-1))
	for y := 0; y < height-1; y++ {
		for x := 0; x < width-1; x++ {
			gx := intensity[y][x+1] - intensity[y][x]
			gy := intensity[y+1][x] - intensity[y][x]
			magnitudes = append(magnitudes, math.Sqrt(gx*gx+gy*gy))
		}
	}

	mean := 0.0
	for _, m := range magnitudes {
		mean += m
	}
	mean /= float64(len(magnitudes))

	variance := 0.0
	for _, m := range magnitudes {
		d := m - mean
		variance += d * d
	}
	return variance / float64(len(magnitudes)), true
}

// dynamicRange 亮度最大值与最小值之差
func dynamicRange(intensity [][]float64) float64 {
	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, row := range intensity {
		for _, v := range row {
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}
	if maxV < minV {
		return 0
	}
	return maxV - minV
}

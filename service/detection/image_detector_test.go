/*
 * @module service/detection/image_detector_test
 * @description 图像取证分析器单元测试，覆盖阈值映射、亮度矩阵计算与端到端检测
 * @architecture 测试层
 * @documentReference dev_docs/detection_requirements.md
 * @stateFlow 构造合成图像 -> 取证检查 -> 结果断言
 * @rules 平坦灰图命中清晰度与动态范围两项；高对比纹理图不产生结果
 * @dependencies testing, testify, image/png
 * @refs image_detector.go
 */

package detection

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datascan-service/service/models"
)

func flatGray(width, height int, level uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = level
	}
	return img
}

// 16像素棋盘格：块与JPEG编码块对齐，重编码差异接近0
func checkerboard(size, block int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if ((x/block)+(y/block))%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// TestElaFinding 测试ELA得分到结果的阈值映射
func TestElaFinding(t *testing.T) {
	_, ok := elaFinding(12.0)
	assert.False(t, ok, "得分未超阈值不产生结果")

	f, ok := elaFinding(15.0)
	require.True(t, ok)
	assert.Equal(t, models.KindVisualManipulation, f.Kind)
	assert.Equal(t, "Global", f.Location)
	assert.Equal(t, models.SeverityMedium, f.Severity)
	// min(0.95, 0.5 + 15/40) = 0.875 -> 0.88
	assert.Equal(t, 0.88, f.Confidence)

	f, ok = elaFinding(25.0)
	require.True(t, ok)
	assert.Equal(t, models.SeverityHigh, f.Severity)
	// 0.5 + 25/40 = 1.125 封顶0.95
	assert.Equal(t, 0.95, f.Confidence)
}

// TestSharpnessFinding 测试梯度方差到低清晰度结果的映射
func TestSharpnessFinding(t *testing.T) {
	_, ok := sharpnessFinding(25.0)
	assert.False(t, ok)

	f, ok := sharpnessFinding(22.0)
	require.True(t, ok)
	assert.Equal(t, models.KindImageQuality, f.Kind)
	assert.Equal(t, models.SeverityLow, f.Severity)
	assert.Equal(t, 0.55, f.Confidence)

	f, ok = sharpnessFinding(10.0)
	require.True(t, ok)
	assert.Equal(t, models.SeverityMedium, f.Severity)
	assert.Equal(t, 0.6, f.Confidence)
}

// TestRangeFinding 测试动态范围过窄的映射
func TestRangeFinding(t *testing.T) {
	_, ok := rangeFinding(30.0)
	assert.False(t, ok)

	f, ok := rangeFinding(12.0)
	require.True(t, ok)
	assert.Equal(t, models.KindImageQuality, f.Kind)
	assert.Equal(t, models.SeverityLow, f.Severity)
	assert.Equal(t, 0.55, f.Confidence)
}

// TestGradientVariance 测试合成亮度矩阵的梯度方差
func TestGradientVariance(t *testing.T) {
	// 平坦矩阵梯度恒为0
	flat := [][]float64{{5, 5, 5}, {5, 5, 5}, {5, 5, 5}}
	v, ok := gradientVariance(flat)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)

	// 线性渐变: 梯度幅值恒定，方差为0
	ramp := [][]float64{{0, 1, 2}, {0, 1, 2}, {0, 1, 2}}
	v, ok = gradientVariance(ramp)
	require.True(t, ok)
	assert.InDelta(t, 0.0, v, 1e-9)

	// 尺寸不足
	_, ok = gradientVariance([][]float64{{1, 2, 3}})
	assert.False(t, ok)
	_, ok = gradientVariance([][]float64{{1}, {2}})
	assert.False(t, ok)
}

// TestDynamicRange 测试亮度动态范围计算
func TestDynamicRange(t *testing.T) {
	assert.Equal(t, 0.0, dynamicRange([][]float64{{7, 7}, {7, 7}}))
	assert.Equal(t, 200.0, dynamicRange([][]float64{{20, 100}, {220, 60}}))
	assert.Equal(t, 0.0, dynamicRange(nil))
}

// TestGrayIntensity 测试标准luma加权亮度转换
func TestGrayIntensity(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	img.Set(1, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	intensity := grayIntensity(img)
	require.Len(t, intensity, 1)
	assert.InDelta(t, 0.299*255, intensity[0][0], 1e-9)
	assert.InDelta(t, 255.0, intensity[0][1], 1e-9)
}

// TestDetectImageAnomalies_FlatGray 测试平坦灰图：低清晰度+窄动态范围，无ELA结果
func TestDetectImageAnomalies_FlatGray(t *testing.T) {
	findings := DetectImageAnomalies(flatGray(32, 32, 128))
	require.Len(t, findings, 2)

	assert.Equal(t, models.KindImageQuality, findings[0].Kind)
	assert.Equal(t, models.SeverityMedium, findings[0].Severity)
	assert.Equal(t, 0.6, findings[0].Confidence)

	assert.Equal(t, models.KindImageQuality, findings[1].Kind)
	assert.Equal(t, models.SeverityLow, findings[1].Severity)
	assert.Equal(t, 0.55, findings[1].Confidence)
}

// TestDetectImageAnomalies_SubImageOrigin 测试边界不从原点开始的图像：
// 平坦子图的重编码差异应接近0，不得误报篡改
func TestDetectImageAnomalies_SubImageOrigin(t *testing.T) {
	sub := flatGray(64, 64, 128).SubImage(image.Rect(16, 16, 48, 48)).(*image.Gray)
	require.Equal(t, image.Pt(16, 16), sub.Bounds().Min)

	score, err := elaScore(sub)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1.0)

	findings := DetectImageAnomalies(sub)
	require.Len(t, findings, 2)
	for _, f := range findings {
		assert.Equal(t, models.KindImageQuality, f.Kind)
	}
}

// TestDetectImageAnomalies_HighContrast 测试块对齐高对比图不产生任何结果
func TestDetectImageAnomalies_HighContrast(t *testing.T) {
	findings := DetectImageAnomalies(checkerboard(64, 16))
	assert.Empty(t, findings)
}

// TestDetectImageAnomalies_Nil 测试nil图像返回空列表
func TestDetectImageAnomalies_Nil(t *testing.T) {
	findings := DetectImageAnomalies(nil)
	assert.NotNil(t, findings)
	assert.Empty(t, findings)
}

// TestDetectImageBytes_RoundTrip 测试字节流入口端到端
func TestDetectImageBytes_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, flatGray(32, 32, 100)))

	findings := DetectImageBytes(buf.Bytes())
	assert.Len(t, findings, 2)
}

// TestDetectImageBytes_InvalidData 测试解码失败转换为单条File Error结果
func TestDetectImageBytes_InvalidData(t *testing.T) {
	findings := DetectImageBytes([]byte("not an image"))
	require.Len(t, findings, 1)
	assert.Equal(t, models.KindFileError, findings[0].Kind)
	assert.Equal(t, "Image processing", findings[0].Location)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
	assert.Equal(t, 1.0, findings[0].Confidence)
	assert.Contains(t, findings[0].Description, "Error processing image:")
}

package crawlers

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/RecoveryAshes/sitesnap/internal/models"
	"github.com/RecoveryAshes/sitesnap/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// inflate 解压HTTP deflate响应体
// 标准格式带zlib头, 部分服务器直接发送裸deflate流, 两种都接受
func inflate(body []byte) ([]byte, error) {
	if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
		decompressed, err := io.ReadAll(zr)
		zr.Close()
		if err == nil {
			return decompressed, nil
		}
	}

	reader := flate.NewReader(bytes.NewReader(body))
	defer reader.Close()

	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("deflate读取失败: %w", err)
	}
	return decompressed, nil
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli)
//
// HTTP客户端通常已透明解压gzip, 此时响应体不再带gzip魔数, 原样返回
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip", "x-gzip":
		if !isGzip(body) {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		return inflate(body)

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		// 未知编码,返回原始内容
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

func isGzip(body []byte) bool {
	return len(body) >= 2 && body[0] == 0x1f && body[1] == 0x8b
}

// classifyResource 确定资源分类: Content-Type 优先, 其次URL扩展名, 最后使用发现时的提示
func classifyResource(contentType, urlPath string, hint models.ResourceKind) models.ResourceKind {
	if kind := models.KindFromContentType(contentType); kind != "" && kind != models.KindOther {
		return kind
	}
	if kind := models.KindFromExtension(urlPath); kind != "" {
		return kind
	}
	if hint != "" {
		return hint
	}
	if kind := models.KindFromContentType(contentType); kind != "" {
		return kind
	}
	return models.KindOther
}

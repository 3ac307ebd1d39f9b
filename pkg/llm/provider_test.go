package llm

import (
	"context"
	"testing"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string {
	return m.name
}

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{0.1, 0.2, 0.3}
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestRegisterAndNewEmbeddingProvider(t *testing.T) {
	// 注册测试供应商
	RegisterEmbeddingProvider("test-provider", func(config map[string]any) (EmbeddingProvider, error) {
		name := "test-provider"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	// 测试创建供应商
	provider, err := NewEmbeddingProvider("test-provider", map[string]any{"name": "custom-name"})
	if err != nil {
		t.Fatalf("NewEmbeddingProvider failed: %v", err)
	}

	if provider.Name() != "custom-name" {
		t.Errorf("expected name 'custom-name', got '%s'", provider.Name())
	}
}

func TestNewEmbeddingProviderUnknown(t *testing.T) {
	_, err := NewEmbeddingProvider("unknown-provider", nil)
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestRegisterOverwrites(t *testing.T) {
	RegisterEmbeddingProvider("overwrite-me", func(config map[string]any) (EmbeddingProvider, error) {
		return &mockProvider{name: "first"}, nil
	})
	RegisterEmbeddingProvider("overwrite-me", func(config map[string]any) (EmbeddingProvider, error) {
		return &mockProvider{name: "second"}, nil
	})

	provider, err := NewEmbeddingProvider("overwrite-me", nil)
	if err != nil {
		t.Fatalf("NewEmbeddingProvider failed: %v", err)
	}
	if provider.Name() != "second" {
		t.Errorf("expected later registration to win, got '%s'", provider.Name())
	}
}

func TestListProviders(t *testing.T) {
	RegisterEmbeddingProvider("list-me", func(config map[string]any) (EmbeddingProvider, error) {
		return &mockProvider{name: "list-me"}, nil
	})

	providers := ListProviders()
	if len(providers) == 0 {
		t.Error("expected at least one registered provider")
	}

	// 检查测试供应商是否在列表中
	found := false
	for _, p := range providers {
		if p == "list-me" {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected 'list-me' in provider list")
	}

	// 列表必须按名称排序
	for i := 1; i < len(providers); i++ {
		if providers[i-1] > providers[i] {
			t.Errorf("provider list not sorted: %q before %q", providers[i-1], providers[i])
		}
	}
}

func TestMockProviderEmbed(t *testing.T) {
	provider := &mockProvider{name: "test"}

	embeddings, err := provider.Embed(context.Background(), []string{"hello", "world"})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(embeddings) != 2 {
		t.Errorf("expected 2 embeddings, got %d", len(embeddings))
	}

	for i, emb := range embeddings {
		if len(emb) != 3 {
			t.Errorf("embedding %d: expected 3 dimensions, got %d", i, len(emb))
		}
	}
}

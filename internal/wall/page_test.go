package wall

import (
	"fmt"
	"testing"
)

func numberedPosts(n int) []*Post {
	posts := make([]*Post, n)
	for i := range posts {
		posts[i] = &Post{PID: fmt.Sprintf("%06d", n-i), Content: "post"}
	}
	return posts
}

func TestPaginate(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		got := Paginate(nil, 1, 10)
		if len(got.Data) != 0 || got.Total != 0 || got.TotalPages != 0 || got.HasMore {
			t.Fatalf("unexpected result: %+v", got)
		}
	})
	t.Run("FirstPage", func(t *testing.T) {
		got := Paginate(numberedPosts(25), 1, 10)
		if len(got.Data) != 10 {
			t.Fatalf("len(Data) = %d, want 10", len(got.Data))
		}
		if got.Data[0].PID != "000025" {
			t.Fatalf("Data[0].PID = %q, want 000025", got.Data[0].PID)
		}
		if got.Total != 25 || got.TotalPages != 3 || !got.HasMore {
			t.Fatalf("unexpected metadata: %+v", got)
		}
	})
	t.Run("LastPage", func(t *testing.T) {
		got := Paginate(numberedPosts(25), 3, 10)
		if len(got.Data) != 5 {
			t.Fatalf("len(Data) = %d, want 5", len(got.Data))
		}
		if got.HasMore {
			t.Fatal("HasMore = true on last page")
		}
	})
	t.Run("ExactFit", func(t *testing.T) {
		got := Paginate(numberedPosts(20), 2, 10)
		if len(got.Data) != 10 || got.TotalPages != 2 || got.HasMore {
			t.Fatalf("unexpected result: %+v", got)
		}
	})
	t.Run("OutOfRange", func(t *testing.T) {
		got := Paginate(numberedPosts(25), 4, 10)
		if len(got.Data) != 0 {
			t.Fatalf("len(Data) = %d, want 0", len(got.Data))
		}
		if got.HasMore {
			t.Fatal("HasMore = true past the last page")
		}
		if got.Total != 25 || got.TotalPages != 3 {
			t.Fatalf("unexpected metadata: %+v", got)
		}
	})
	t.Run("PageBelowOne", func(t *testing.T) {
		got := Paginate(numberedPosts(5), 0, 10)
		if got.Page != 1 || len(got.Data) != 5 {
			t.Fatalf("unexpected result: %+v", got)
		}
	})
	t.Run("PerPageDefault", func(t *testing.T) {
		got := Paginate(numberedPosts(15), 1, 0)
		if got.PerPage != DefaultPerPage || len(got.Data) != DefaultPerPage {
			t.Fatalf("unexpected result: %+v", got)
		}
	})
	t.Run("TotalConsistent", func(t *testing.T) {
		posts := numberedPosts(37)
		sum := 0
		first := Paginate(posts, 1, 10)
		for page := 1; page <= first.TotalPages; page++ {
			sum += len(Paginate(posts, page, 10).Data)
		}
		if sum != first.Total {
			t.Fatalf("pages sum to %d rows, want %d", sum, first.Total)
		}
	})
}

func TestFilter(t *testing.T) {
	posts := []*Post{
		{PID: "000004", Content: "今天 #表白# 了"},
		{PID: "000003", Content: "plain"},
		{PID: "000002", Content: "听说 #八卦# 一下"},
		{PID: "000001", Content: "#表白# again"},
	}
	t.Run("Latest", func(t *testing.T) {
		got := FilterLatest.Apply(posts)
		if len(got) != 4 {
			t.Fatalf("len = %d, want 4", len(got))
		}
	})
	t.Run("Love", func(t *testing.T) {
		got := FilterLove.Apply(posts)
		if len(got) != 2 || got[0].PID != "000004" || got[1].PID != "000001" {
			t.Fatalf("unexpected posts: %+v", got)
		}
	})
	t.Run("Gossip", func(t *testing.T) {
		got := FilterGossip.Apply(posts)
		if len(got) != 1 || got[0].PID != "000002" {
			t.Fatalf("unexpected posts: %+v", got)
		}
	})
	t.Run("Unknown", func(t *testing.T) {
		if got := Filter("whatever").Apply(posts); len(got) != 4 {
			t.Fatalf("len = %d, want 4", len(got))
		}
	})
}

// Filtering happens before pagination, so totals reflect the filtered
// count rather than the collection size.
func TestFilterThenPaginate(t *testing.T) {
	posts := []*Post{}
	for i := range 40 {
		content := "plain"
		if i%4 == 0 {
			content = "#表白#"
		}
		posts = append(posts, &Post{PID: fmt.Sprintf("%06d", i+1), Content: content})
	}
	got := Paginate(FilterLove.Apply(posts), 1, 10)
	if got.Total != 10 || got.TotalPages != 1 || got.HasMore {
		t.Fatalf("unexpected metadata: %+v", got)
	}
}
